package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace_backend/platform/apperr"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(context.Background(), "request-1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder at a time, saw %d", maxSeen)
	}
	if km.Len() != 0 {
		t.Fatalf("expected idle keys to be released, got %d entries", km.Len())
	}
}

func TestKeyedMutexUnrelatedKeysDoNotContend(t *testing.T) {
	km := NewKeyedMutex()
	unlockA, err := km.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := km.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("expected b to be acquired while a is held: %v", err)
	}
	unlockB()
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	km := NewKeyedMutex()
	unlock, err := km.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := km.Lock(ctx, "a"); !apperr.IsRetriable(err) {
		t.Fatalf("expected retriable error on timeout, got %v", err)
	}

	unlock()
	unlock()

	if km.Len() != 0 {
		t.Fatalf("expected entry to be dropped after waiter gave up, got %d", km.Len())
	}
}

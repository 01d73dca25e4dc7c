package lock

import (
	"context"
	"testing"
	"time"

	"marketplace_backend/platform/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	locker, _ := newTestRedisLocker(t, time.Minute)

	unlock, err := locker.Lock(context.Background(), "request-1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "request-1"); !apperr.IsRetriable(err) {
		t.Fatalf("expected retriable timeout while held, got %v", err)
	}

	unlock()

	unlock2, err := locker.Lock(context.Background(), "request-1")
	if err != nil {
		t.Fatalf("expected lock after release: %v", err)
	}
	unlock2()
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	locker, mr := newTestRedisLocker(t, time.Second)

	unlockStale, err := locker.Lock(context.Background(), "request-1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	mr.FastForward(2 * time.Second)

	unlockFresh, err := locker.Lock(context.Background(), "request-1")
	if err != nil {
		t.Fatalf("expected lock after ttl expiry: %v", err)
	}
	defer unlockFresh()

	unlockStale()

	if !mr.Exists(redisKeyPrefix + "request-1") {
		t.Fatalf("stale unlock must not delete the current holder's key")
	}
}

func TestRedisLockerUnavailableStore(t *testing.T) {
	locker, mr := newTestRedisLocker(t, time.Second)
	mr.Close()

	_, err := locker.Lock(context.Background(), "request-1")
	if !apperr.IsRetriable(err) {
		t.Fatalf("expected retriable error when redis is down, got %v", err)
	}
}

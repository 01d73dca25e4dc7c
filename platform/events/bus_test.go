package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"marketplace_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))
	errA := errors.New("a failed")
	var calls int32

	bus.Subscribe("thing.happened", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return errA
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	bus.Subscribe("other", HandlerFunc(func(context.Context, Event) error {
		t.Fatalf("handler for unrelated event must not run")
		return nil
	}))

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})
	if !errors.Is(err, errA) {
		t.Fatalf("expected joined error to contain handler error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
}

func TestPublishRecoversFromPanics(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))
	var ran int32

	bus.Subscribe("boom", HandlerFunc(func(context.Context, Event) error {
		panic("handler exploded")
	}))
	bus.Subscribe("boom", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "boom"})
	bus.Wait()

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatalf("expected surviving handler to run once, got %d", ran)
	}
}

func TestPublishSyncReportsPanicAsError(t *testing.T) {
	bus := NewInMemoryBus(nil)
	bus.Subscribe("boom", HandlerFunc(func(context.Context, Event) error {
		panic("nope")
	}))

	if err := bus.PublishSync(context.Background(), testEvent{name: "boom"}); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}

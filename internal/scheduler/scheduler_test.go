package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type stubSchedulerConfig struct {
	queue string
}

func (c stubSchedulerConfig) GetRedisURL() string       { return "" }
func (c stubSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c stubSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c stubSchedulerConfig) GetAsynqConcurrency() int  { return 1 }
func (c stubSchedulerConfig) GetAsynqMaxRetry() int     { return 3 }

type recordingEnqueuer struct {
	mu       sync.Mutex
	payloads []NotificationRedeliverPayload
	err      error
}

func (e *recordingEnqueuer) EnqueueRedelivery(_ context.Context, payload NotificationRedeliverPayload, _ time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.payloads = append(e.payloads, payload)
	return nil
}

type scriptedRedeliverer struct {
	err   error
	calls int
}

func (r *scriptedRedeliverer) Redeliver(_ context.Context, _ uuid.UUID) error {
	r.calls++
	return r.err
}

func TestDispatchOnceEnqueuesDueRows(t *testing.T) {
	ctx := context.Background()
	repo := outbox.NewMemoryStore()
	notificationID := uuid.New()
	outboxID, _ := repo.Enqueue(ctx, notificationID, "smtp down")

	queue := &recordingEnqueuer{}
	d := NewNotificationOutboxDispatcher(queue, repo, logger.New("test"))

	n, err := d.DispatchOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one enqueued row, got %d %v", n, err)
	}
	if queue.payloads[0].OutboxID != outboxID.String() || queue.payloads[0].NotificationID != notificationID.String() {
		t.Fatalf("unexpected payload %+v", queue.payloads[0])
	}

	rec, _ := repo.GetByID(ctx, outboxID)
	if rec.Status != outbox.StatusEnqueued {
		t.Fatalf("expected enqueued, got %s", rec.Status)
	}
	if n, _ := d.DispatchOnce(ctx); n != 0 {
		t.Fatalf("claimed rows must not be enqueued twice")
	}
}

func TestDispatchOnceReleasesRowsWhenQueueIsDown(t *testing.T) {
	ctx := context.Background()
	repo := outbox.NewMemoryStore()
	outboxID, _ := repo.Enqueue(ctx, uuid.New(), "smtp down")

	d := NewNotificationOutboxDispatcher(&recordingEnqueuer{err: errors.New("redis unreachable")}, repo, logger.New("test"))
	if n, err := d.DispatchOnce(ctx); err != nil || n != 0 {
		t.Fatalf("expected nothing enqueued, got %d %v", n, err)
	}

	rec, _ := repo.GetByID(ctx, outboxID)
	if rec.Status != outbox.StatusPending || rec.LastError == nil || *rec.LastError != "redis unreachable" {
		t.Fatalf("expected row back to pending with the queue error, got %+v", rec)
	}
}

func TestProcessMarksOutcome(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		err     error
		final   bool
		status  outbox.Status
		wantErr bool
		skip    bool
	}{
		{name: "delivered", status: outbox.StatusSucceeded},
		{name: "retry", err: errors.New("smtp down"), status: outbox.StatusProcessing, wantErr: true},
		{name: "final attempt", err: errors.New("smtp down"), final: true, status: outbox.StatusFailed, wantErr: true},
		{name: "missing notification", err: inapp.ErrNotificationNotFound, status: outbox.StatusFailed, wantErr: true, skip: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := outbox.NewMemoryStore()
			notificationID := uuid.New()
			outboxID, _ := repo.Enqueue(ctx, notificationID, "first failure")

			p := NewRedeliveryProcessor(repo, &scriptedRedeliverer{err: tc.err}, logger.New("test"))
			err := p.Process(ctx, NotificationRedeliverPayload{OutboxID: outboxID.String(), NotificationID: notificationID.String()}, tc.final)
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if errors.Is(err, asynq.SkipRetry) != tc.skip {
				t.Fatalf("skip retry mismatch for %v", err)
			}

			rec, _ := repo.GetByID(ctx, outboxID)
			if rec.Status != tc.status {
				t.Fatalf("expected %s, got %s", tc.status, rec.Status)
			}
			if rec.Attempts != 1 {
				t.Fatalf("expected one recorded attempt, got %d", rec.Attempts)
			}
		})
	}
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	redeliverer := &scriptedRedeliverer{}
	p := NewRedeliveryProcessor(outbox.NewMemoryStore(), redeliverer, logger.New("test"))

	err := p.Process(context.Background(), NotificationRedeliverPayload{OutboxID: "nope", NotificationID: uuid.NewString()}, false)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected skip retry, got %v", err)
	}
	err = p.Process(context.Background(), NotificationRedeliverPayload{OutboxID: uuid.NewString(), NotificationID: uuid.NewString()}, false)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected skip retry for unknown outbox row, got %v", err)
	}
	if redeliverer.calls != 0 {
		t.Fatalf("redeliverer must not run for rejected payloads")
	}
}

func TestClientSchedulesRedeliveryOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newClient(asynq.RedisClientOpt{Addr: mr.Addr()}, stubSchedulerConfig{queue: "notifications"})
	t.Cleanup(func() { _ = c.Close() })

	payload := NotificationRedeliverPayload{OutboxID: uuid.NewString(), NotificationID: uuid.NewString(), Attempt: 1}
	runAt := time.Now().Add(time.Hour)
	if err := c.EnqueueRedelivery(context.Background(), payload, runAt); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := c.EnqueueRedelivery(context.Background(), payload, runAt); err != nil {
		t.Fatalf("duplicate enqueue must be absorbed: %v", err)
	}

	scheduled, err := mr.ZMembers("asynq:{notifications}:scheduled")
	if err != nil {
		t.Fatalf("read scheduled set: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0] != payload.TaskID() {
		t.Fatalf("expected one scheduled task, got %v", scheduled)
	}
}

func TestRedisClientOptParsesURL(t *testing.T) {
	opt, err := redisClientOpt("rediss://:secret@cache.internal:6380/2", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected options %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatalf("expected insecure tls for rediss with override")
	}

	if _, err := redisClientOpt("not a url", false); err == nil {
		t.Fatalf("expected parse error")
	}
}

package scheduler

import (
	"context"
	"time"

	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/logger"
)

const (
	outboxPollInterval = 2 * time.Second
	outboxClaimBatch   = 50
)

// RedeliveryEnqueuer hands a redelivery task to the queue.
type RedeliveryEnqueuer interface {
	EnqueueRedelivery(ctx context.Context, payload NotificationRedeliverPayload, runAt time.Time) error
}

// NotificationOutboxDispatcher moves due outbox rows onto the task queue.
type NotificationOutboxDispatcher struct {
	queue    RedeliveryEnqueuer
	repo     outbox.Store
	log      *logger.Logger
	interval time.Duration
}

func NewNotificationOutboxDispatcher(queue RedeliveryEnqueuer, repo outbox.Store, log *logger.Logger) *NotificationOutboxDispatcher {
	return &NotificationOutboxDispatcher{
		queue:    queue,
		repo:     repo,
		log:      log,
		interval: outboxPollInterval,
	}
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.queue == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := d.DispatchOnce(ctx); err != nil {
			d.log.Warn("outbox claim failed", "error", err)
		}
	}
}

// DispatchOnce claims one batch of due rows and enqueues them. Rows that
// cannot be enqueued go back to pending with the error recorded.
func (d *NotificationOutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	records, err := d.repo.ClaimPending(ctx, outboxClaimBatch)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, rec := range records {
		payload := NotificationRedeliverPayload{
			OutboxID:       rec.ID.String(),
			NotificationID: rec.NotificationID.String(),
			Attempt:        rec.Attempts,
		}
		if err := d.queue.EnqueueRedelivery(ctx, payload, rec.RunAt); err != nil {
			msg := err.Error()
			if perr := d.repo.MarkPending(ctx, rec.ID, &msg); perr != nil {
				d.log.Error("outbox release failed", "outboxId", rec.ID, "error", perr)
			}
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"

	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Redeliverer retries delivery of a stored notification.
type Redeliverer interface {
	Redeliver(ctx context.Context, notificationID uuid.UUID) error
}

// RedeliveryProcessor runs one redelivery attempt against the outbox.
type RedeliveryProcessor struct {
	repo        outbox.Store
	redeliverer Redeliverer
	log         *logger.Logger
}

func NewRedeliveryProcessor(repo outbox.Store, redeliverer Redeliverer, log *logger.Logger) *RedeliveryProcessor {
	return &RedeliveryProcessor{repo: repo, redeliverer: redeliverer, log: log}
}

// Process attempts delivery. A failed attempt returns an error so the queue
// retries it; on the final attempt the outbox row is marked failed.
func (p *RedeliveryProcessor) Process(ctx context.Context, payload NotificationRedeliverPayload, final bool) error {
	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return fmt.Errorf("parse outbox id: %w", asynq.SkipRetry)
	}
	notificationID, err := uuid.Parse(payload.NotificationID)
	if err != nil {
		return fmt.Errorf("parse notification id: %w", asynq.SkipRetry)
	}

	if err := p.repo.MarkProcessing(ctx, outboxID); err != nil {
		if errors.Is(err, outbox.ErrRecordNotFound) {
			return fmt.Errorf("outbox %s: %w", outboxID, asynq.SkipRetry)
		}
		return err
	}

	err = p.redeliverer.Redeliver(ctx, notificationID)
	if err == nil {
		if err := p.repo.MarkSucceeded(ctx, outboxID); err != nil {
			p.log.Warn("outbox mark succeeded failed", "outboxId", outboxID, "error", err)
		}
		return nil
	}

	permanent := errors.Is(err, inapp.ErrNotificationNotFound)
	if final || permanent {
		if merr := p.repo.MarkFailed(ctx, outboxID, err.Error()); merr != nil {
			p.log.Error("outbox mark failed failed", "outboxId", outboxID, "error", merr)
		}
		p.log.Error("notification redelivery gave up", "outboxId", outboxID, "notificationId", notificationID, "error", err)
		if permanent {
			return fmt.Errorf("redeliver %s: %v: %w", notificationID, err, asynq.SkipRetry)
		}
		return err
	}

	p.log.Warn("notification redelivery failed", "outboxId", outboxID, "notificationId", notificationID, "error", err)
	return err
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor *RedeliveryProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, processor *RedeliveryProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		processor: processor,
		log:       log,
	}

	mux.HandleFunc(TaskNotificationRedeliver, w.handleNotificationRedeliver)

	return w, nil
}

func (w *Worker) handleNotificationRedeliver(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationRedeliverPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return w.processor.Process(ctx, payload, retried >= maxRetry)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace_backend/internal/adapters"
	catalogrepo "marketplace_backend/internal/catalog/repository"
	catalogsvc "marketplace_backend/internal/catalog/service"
	"marketplace_backend/internal/email"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/internal/scheduler"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/db"
	"marketplace_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	queue := outbox.New(pool)
	catalog := catalogsvc.New(catalogrepo.New(pool), log)

	// Live SSE streams belong to the API process, so redelivery here covers
	// the email channel only.
	delivery := notification.NewEmailDelivery(email.NewSender(cfg), adapters.NewCatalogEmailResolver(catalog))
	renderer := notification.NewRenderer(catalog, cfg.GetAppBaseURL())
	dispatcher := notification.NewDispatcher(inapp.NewRepository(pool), queue, delivery, renderer, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	outboxDispatcher := scheduler.NewNotificationOutboxDispatcher(client, queue, log)
	go outboxDispatcher.Run(ctx)

	processor := scheduler.NewRedeliveryProcessor(queue, dispatcher, log)
	worker, err := scheduler.NewWorker(cfg, processor, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace_backend/internal/adapters"
	"marketplace_backend/internal/adapters/storage"
	catalogrepo "marketplace_backend/internal/catalog/repository"
	catalogsvc "marketplace_backend/internal/catalog/service"
	"marketplace_backend/internal/email"
	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/http/router"
	"marketplace_backend/internal/lifecycle"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/db"
	"marketplace_backend/platform/lock"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if cfg.MigrateOnStart {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	locker, closeLocker := initLocker(cfg, log)
	defer closeLocker()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	catalog := catalogsvc.New(catalogrepo.New(pool), log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.New(inapp.NewRepository(pool), outbox.New(pool), catalog, cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	if cfg.IsEmailEnabled() {
		notificationModule.EnableEmail(email.NewSender(cfg), adapters.NewCatalogEmailResolver(catalog))
		log.Info("email notifications enabled", "host", cfg.GetSMTPHost())
	}

	lifecycleModule := lifecycle.NewModule(lifecycle.PostgresStores(pool), locker, notificationModule.Dispatcher(), val, log)
	lifecycleModule.Service().SetEventBus(eventBus)

	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		bucket := cfg.GetMinioBucketRequestPhotos()
		if err := withRetry(ctx, log, "ensure request photo bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx, bucket)
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		lifecycleModule.SetPhotoLinker(adapters.NewRequestPhotoLinker(storageSvc, bucket))
		log.Info("storage service initialized", "requestPhotosBucket", bucket)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; request photos are returned without links")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			lifecycleModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initLocker picks the per-request lock implementation. The in-process lock
// is only correct for a single API instance.
func initLocker(cfg config.LockConfig, log *logger.Logger) (lock.Locker, func()) {
	if cfg.GetLockDriver() != config.LockDriverRedis {
		log.Warn("using in-process request locks; run a single API instance")
		return lock.NewKeyedMutex(), func() {}
	}

	client, err := lock.NewRedisClient(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to initialize redis lock client", "error", err)
		panic("failed to initialize redis lock client: " + err.Error())
	}
	log.Info("using redis request locks", "ttl", cfg.GetLockTTL())
	return lock.NewRedisLocker(client, cfg.GetLockTTL()), func() { _ = client.Close() }
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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

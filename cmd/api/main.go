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

	"github.com/jackc/pgx/v5/pgxpool"

	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/events"
	"leadqual_backend/internal/followup"
	apphttp "leadqual_backend/internal/http"
	"leadqual_backend/internal/http/router"
	"leadqual_backend/internal/profile"
	"leadqual_backend/internal/questionnaire"
	"leadqual_backend/internal/questionnaire/draft"
	"leadqual_backend/internal/scheduler"
	"leadqual_backend/platform/config"
	"leadqual_backend/platform/db"
	"leadqual_backend/platform/logger"
	"leadqual_backend/platform/validator"
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

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Question catalog, loaded once and shared read-only
	cat, err := catalog.Load(cfg.GetCatalogPath())
	if err != nil {
		log.Error("failed to load question catalog", "error", err, "path", cfg.GetCatalogPath())
		panic("failed to load question catalog: " + err.Error())
	}
	log.Info("question catalog loaded", "questions", cat.TotalQuestions())

	// Draft store: Redis when configured, in-process otherwise
	drafts, closeDrafts := initDraftStore(cfg, log)
	if closeDrafts != nil {
		defer closeDrafts()
	}

	// Snooze scheduler client (optional, needs Redis)
	snoozeScheduler, closeScheduler := initSnoozeScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	profileModule := profile.NewModule(pool, cat, eventBus, val, log)
	questionnaireModule := questionnaire.NewModule(pool, cat, drafts, profileModule.Service(), eventBus, val, cfg, log)
	followupModule := followup.NewModule(cat, profileModule.Service(), snoozeScheduler, eventBus, val, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			questionnaireModule,
			profileModule,
			followupModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
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
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initDraftStore(cfg *config.Config, log *logger.Logger) (draft.Store, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; drafts will not survive restarts")
		return draft.NewMemoryStore(), nil
	}

	store, err := draft.NewRedisStore(cfg)
	if err != nil {
		log.Error("failed to initialize redis draft store, falling back to memory", "error", err)
		return draft.NewMemoryStore(), nil
	}

	return store, func() {
		_ = store.Close()
	}
}

func initSnoozeScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.SnoozeScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; snooze expiry tasks disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize snooze scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
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

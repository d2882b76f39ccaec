// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/config"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/database"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/handler"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/reconcile"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/registration"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/repository"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/service"
	"github.com/Shivanand-hulikatti/masterclass-reservation/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTel)
	if err != nil {
		log.Fatal("tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	// ── 1. Open the capacity store ───────────────────────────────────────
	store, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		log.Fatal("store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closeStore()
	log.Info("capacity store ready", zap.String("backend", cfg.Store.Backend))

	// ── 2. Wire up layers ────────────────────────────────────────────────
	var leaks service.LeakReporter
	if cfg.Kafka.Enabled() {
		reporter := reconcile.NewKafkaReporter(log, reconcile.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.LeakTopic), cfg.Kafka.LeakTopic)
		defer reporter.Close()
		leaks = reporter
		log.Info("leak reporting enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.LeakTopic))
	}

	seats := service.NewCoordinator(store, log, service.CoordinatorOptions{
		RetryAttempts:  cfg.Store.RetryAttempts,
		NegateEventKey: cfg.Store.NegateEventKey,
	})
	gateway := registration.NewClient(cfg.Registration.URL, cfg.Registration.Timeout, log)
	svc := service.NewRegistrationService(seats, gateway, leaks, cfg.Fields, log)
	regHandler := handler.NewRegistrationHandler(svc, log)

	// ── 3. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(regHandler, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	log.Info("server stopped")
}

// openStore connects the configured backend and returns it with its closer.
func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (service.CapacityStore, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := database.NewPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPostgresStore(pool), pool.Close, nil

	case config.BackendRedis:
		client, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisStore(client), func() { _ = client.Close() }, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLiteStore(db), func() { _ = db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

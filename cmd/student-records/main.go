// main is the entry point of the Student Records API.
//
// STARTUP SEQUENCE:
//  1. Load configuration (.env, optional YAML file, environment)
//  2. Initialise the zap logger for the deployment profile
//  3. Connect to the configured storage backend and migrate its schema
//  4. Build the service, metrics registry and router
//  5. Start the HTTP server in a separate goroutine
//  6. Block until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, close the store
//
// RUNNING THE SERVER:
//
//	go run ./cmd/student-records --config=config/local.yaml
//
// or, with no file at all, from the environment alone:
//
//	STORAGE_DRIVER=sqlite SERVER_PORT=8080 go run ./cmd/student-records
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/aanand-mishra/student-records-api/internal/config"
	"github.com/aanand-mishra/student-records-api/internal/http/middleware"
	"github.com/aanand-mishra/student-records-api/internal/http/router"
	"github.com/aanand-mishra/student-records-api/internal/logger"
	"github.com/aanand-mishra/student-records-api/internal/service"
	"github.com/aanand-mishra/student-records-api/internal/storage"
	"github.com/aanand-mishra/student-records-api/internal/storage/mongodb"
	"github.com/aanand-mishra/student-records-api/internal/storage/postgres"
	"github.com/aanand-mishra/student-records-api/internal/storage/sqlite"
)

const version = "1.0.0"

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %s", err)
	}
	defer zlog.Sync() //nolint:errcheck // stdout sync fails on some terminals

	// Handlers log through zap.L().
	zap.ReplaceGlobals(zlog)

	zlog.Info("Starting student-records",
		zap.String("env", cfg.Env),
		zap.String("version", version),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		zlog.Fatal("Failed to initialise storage",
			zap.String("driver", cfg.Storage.Driver),
			zap.Error(err),
		)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Warn("Failed to close storage", zap.Error(err))
		}
	}()

	zlog.Info("Storage initialised", zap.String("driver", cfg.Storage.Driver))

	// ── 4. Build Service and Router ───────────────────────────────────────
	svc := service.NewStudentService(store, zlog.Named("service"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, zlog)
		limiter.StartCleanup(ctx, time.Minute)
	}

	handler := router.New(router.Deps{
		Service:        svc,
		Logger:         zlog.Named("http"),
		Registry:       registry,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    limiter,
	})

	// ── 5. Start the HTTP Server ──────────────────────────────────────────
	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("Server started", zap.String("address", server.Addr))

		// ErrServerClosed is the normal result of Shutdown.
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	select {
	case <-ctx.Done():
		zlog.Info("Shutdown signal received, stopping server")
	case err := <-serverErr:
		zlog.Error("Server encountered an error", zap.Error(err))
	}

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Failed to shut down server gracefully", zap.Error(err))
		return
	}

	zlog.Info("Server stopped gracefully")
}

// openStorage connects to the backend named by cfg.Storage.Driver.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case storage.DriverSQLite:
		return sqlite.New(ctx, cfg)
	case storage.DriverPostgres:
		return postgres.New(ctx, cfg)
	case storage.DriverMongo:
		return mongodb.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

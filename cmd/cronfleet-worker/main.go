package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/cronfleet/internal/app"
	"github.com/shaiso/cronfleet/internal/config"
	"github.com/shaiso/cronfleet/internal/repo"
	"github.com/shaiso/cronfleet/internal/telemetry"
)

// Worker — процесс-планировщик без HTTP API.
// Запускается в нескольких экземплярах над одной БД.
func main() {
	startTime := time.Now()

	logger := telemetry.SetupLogger()
	logger.Info("starting cronfleet-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Миграции применяет cronfleet-api или cronfleet-migrate.
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	events := app.ConnectEvents(ctx, cfg, logger)
	defer events.Close()

	sched, err := app.NewScheduler(cfg, pool, events, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	logger = telemetry.WithServerID(logger, sched.ServerID())

	// HTTP: /healthz + /metrics
	server := &http.Server{
		Addr:              ":" + cfg.WorkerPort,
		Handler:           app.HealthMux(startTime, prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := app.Run(ctx, logger, server, sched, cfg.ShutdownTimeout); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

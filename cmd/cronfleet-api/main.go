package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/cronfleet/internal/api"
	"github.com/shaiso/cronfleet/internal/app"
	"github.com/shaiso/cronfleet/internal/config"
	"github.com/shaiso/cronfleet/internal/repo"
	"github.com/shaiso/cronfleet/internal/telemetry"
)

func main() {
	startTime := time.Now()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting cronfleet-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MigrateOnStart {
		if err := repo.MigrateUp(cfg.DBURL); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// Подключаемся к базе данных
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

	handler := api.NewHandler(api.Config{
		Tasks:       repo.NewTaskRepo(pool),
		History:     repo.NewHistoryRepo(pool),
		Scheduler:   sched,
		StatsWindow: cfg.StatsWindow,
		Logger:      logger,
	})

	mux := app.HealthMux(startTime, prometheus.DefaultGatherer)
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := app.Run(ctx, logger, server, sched, cfg.ShutdownTimeout); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

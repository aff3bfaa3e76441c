package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/cronfleet/internal/config"
	"github.com/shaiso/cronfleet/internal/mq"
	"github.com/shaiso/cronfleet/internal/repo"
	"github.com/shaiso/cronfleet/internal/scheduler"
	"github.com/shaiso/cronfleet/internal/taskfn"
	"github.com/shaiso/cronfleet/internal/telemetry"
)

// Events — подключение к RabbitMQ и publisher событий.
// Нулевое значение означает, что события отключены.
type Events struct {
	conn      *mq.Connection
	publisher *mq.Publisher
}

// ConnectEvents подключается к RabbitMQ и объявляет топологию.
//
// События опциональны: если RABBITMQ_URL не задан или брокер
// недоступен, возвращается пустой Events, процесс работает без них.
func ConnectEvents(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Events {
	if !cfg.EventsEnabled() {
		logger.Info("events disabled (RABBITMQ_URL is empty)")
		return &Events{}
	}

	conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, running without events", "error", err)
		return &Events{}
	}

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Warn("failed to setup topology, running without events", "error", err)
		conn.Close()
		return &Events{}
	}

	logger.Info("rabbitmq topology ready", "topology", mq.TopologyInfo())

	// После переподключения exchange и очередь объявляются заново.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-conn.ReconnectNotify():
				if err := mq.SetupTopology(ctx, conn); err != nil {
					logger.Warn("failed to restore topology", "error", err)
				}
			}
		}
	}()

	return &Events{
		conn:      conn,
		publisher: mq.NewPublisher(conn, logger),
	}
}

// Publisher возвращает publisher или nil (без типизированного nil).
func (e *Events) Publisher() scheduler.EventPublisher {
	if e == nil || e.publisher == nil {
		return nil
	}
	return e.publisher
}

// Close закрывает подключение к RabbitMQ.
func (e *Events) Close() error {
	if e == nil || e.conn == nil {
		return nil
	}
	return e.conn.Close()
}

// NewScheduler собирает планировщик со встроенными функциями.
func NewScheduler(cfg *config.Config, pool *pgxpool.Pool, events *Events, reg prometheus.Registerer, logger *slog.Logger) (*scheduler.Scheduler, error) {
	registry := taskfn.NewBuiltinRegistry(taskfn.Simulation{
		MinDuration: cfg.TaskMinDuration,
		MaxDuration: cfg.TaskMaxDuration,
	}, logger)

	sched, err := scheduler.New(scheduler.Config{
		Tasks:           repo.NewTaskRepo(pool),
		History:         repo.NewHistoryRepo(pool),
		Registry:        registry,
		Publisher:       events.Publisher(),
		Metrics:         telemetry.NewSchedulerMetrics(reg),
		Logger:          logger,
		PollInterval:    cfg.PollInterval,
		ReclaimInterval: cfg.ReclaimInterval,
		StuckThreshold:  cfg.StuckThreshold,
		StoreTimeout:    cfg.StoreTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	return sched, nil
}

// HealthMux создаёт mux с /healthz и /metrics.
func HealthMux(startTime time.Time, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Run запускает HTTP-сервер и планировщик и ждёт отмены ctx.
//
// При отмене: HTTP-сервер останавливается, затем планировщик
// (ожидание текущей задачи и освобождение claim'ов).
// Оба шага ограничены shutdownTimeout; он должен превышать максимальную
// длительность задачи, иначе процесс завершится посреди выполнения.
func Run(ctx context.Context, logger *slog.Logger, server *http.Server, sched *scheduler.Scheduler, shutdownTimeout time.Duration) error {
	if err := sched.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", shutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(
			server.Shutdown(shutdownCtx),
			sched.Stop(shutdownCtx),
		)
	})

	return g.Wait()
}

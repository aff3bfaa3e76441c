package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shaiso/cronfleet/internal/domain"
	"github.com/shaiso/cronfleet/internal/repo"
	"github.com/shaiso/cronfleet/internal/scheduler"
	"github.com/shaiso/cronfleet/internal/telemetry"
)

// TaskReader — чтение задач. Реализуется *repo.TaskRepo.
type TaskReader interface {
	List(ctx context.Context) ([]domain.Task, error)
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	Counts(ctx context.Context) (domain.TaskCounts, error)
}

// HistoryReader — чтение истории. Реализуется *repo.HistoryRepo.
type HistoryReader interface {
	List(ctx context.Context, filter repo.HistoryFilter) ([]domain.TaskHistory, int, error)
	ListByTask(ctx context.Context, taskID int64, limit int) ([]domain.TaskHistory, error)
	Stats(ctx context.Context, since time.Time) (*domain.Stats, error)
}

// SchedulerInfo — состояние локального планировщика. Реализуется *scheduler.Scheduler.
type SchedulerInfo interface {
	ServerID() string
	State() scheduler.State
	IsExecuting() bool
	Functions() []string
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks       TaskReader
	history     HistoryReader
	scheduler   SchedulerInfo
	statsWindow time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks   TaskReader
	History HistoryReader

	// Scheduler — планировщик этого процесса (опционально).
	Scheduler SchedulerInfo

	// StatsWindow — окно статистики по умолчанию (default: 24h).
	StatsWindow time.Duration

	// Now подменяется в тестах (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	window := cfg.StatsWindow
	if window <= 0 {
		window = 24 * time.Hour
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tasks:       cfg.Tasks,
		history:     cfg.History,
		scheduler:   cfg.Scheduler,
		statsWindow: window,
		now:         now,
		logger:      logger,
	}
}

// log возвращает логгер запроса (с request_id) или логгер обработчика.
func (h *Handler) log(r *http.Request) *slog.Logger {
	return telemetry.FromContextOr(r.Context(), h.logger)
}

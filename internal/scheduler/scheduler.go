package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/cronfleet/internal/domain"
	"github.com/shaiso/cronfleet/internal/mq"
	"github.com/shaiso/cronfleet/internal/repo"
	"github.com/shaiso/cronfleet/internal/taskfn"
	"github.com/shaiso/cronfleet/internal/telemetry"
)

// Default configuration values.
const (
	DefaultPollInterval    = time.Second
	DefaultReclaimInterval = 60 * time.Second
	DefaultStuckThreshold  = 5 * time.Minute
	DefaultStoreTimeout    = 10 * time.Second
	DefaultPublishTimeout  = 5 * time.Second
)

// TaskStore — операции над таблицей tasks, нужные планировщику.
// Реализуется *repo.TaskRepo.
type TaskStore interface {
	ClaimDue(ctx context.Context, now time.Time, serverID string) (*domain.Task, error)
	Release(ctx context.Context, task *domain.Task, completedAt time.Time) error
	ReclaimStuck(ctx context.Context, now, cutoff time.Time) ([]repo.ReclaimedTask, error)
	ReleaseByServer(ctx context.Context, serverID string, now time.Time) (int64, error)
}

// HistoryStore — запись истории выполнений. Реализуется *repo.HistoryRepo.
type HistoryStore interface {
	Create(ctx context.Context, h *domain.TaskHistory) error
}

// EventPublisher — публикация событий. Реализуется *mq.Publisher.
type EventPublisher interface {
	PublishTaskExecuted(ctx context.Context, payload mq.TaskExecutedPayload) error
	PublishTaskReclaimed(ctx context.Context, payload mq.TaskReclaimedPayload) error
}

// State — состояние жизненного цикла планировщика.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String возвращает строковое представление State.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config — конфигурация Scheduler.
type Config struct {
	// Хранилища (обязательны)
	Tasks   TaskStore
	History HistoryStore

	// Registry — функции задач (обязателен).
	Registry *taskfn.Registry

	// Publisher — события в RabbitMQ (опционально).
	// Не передавайте сюда типизированный nil.
	Publisher EventPublisher

	// Metrics — Prometheus метрики (опционально).
	Metrics *telemetry.SchedulerMetrics

	Logger *slog.Logger

	// Identity процесса (default: NewIdentity()).
	Identity Identity

	// Clock и NewTicker подменяются в тестах.
	Clock     Clock
	NewTicker TickerFactory

	PollInterval    time.Duration // default: 1s
	ReclaimInterval time.Duration // default: 60s
	StuckThreshold  time.Duration // default: 5m
	StoreTimeout    time.Duration // таймаут одной операции с БД (default: 10s)
	PublishTimeout  time.Duration // таймаут публикации события (default: 5s)
}

// Scheduler — процесс-планировщик.
//
// Забирает due-задачи из общей таблицы, выполняет не более одной
// задачи одновременно и периодически освобождает зависшие задачи
// (в том числе чужие). Несколько процессов работают с одной таблицей
// без координации: уникальность claim обеспечивает БД.
type Scheduler struct {
	tasks     TaskStore
	history   HistoryStore
	registry  *taskfn.Registry
	publisher EventPublisher
	metrics   *telemetry.SchedulerMetrics
	logger    *slog.Logger
	identity  Identity
	clock     Clock
	newTicker TickerFactory

	pollInterval    time.Duration
	reclaimInterval time.Duration
	stuckThreshold  time.Duration
	storeTimeout    time.Duration
	publishTimeout  time.Duration

	// Lifecycle
	mu     sync.Mutex
	state  atomic.Int32
	cancel context.CancelFunc
	loops  sync.WaitGroup

	// Выполнение
	executing atomic.Bool
	execWG    sync.WaitGroup
}

// New создаёт новый Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Tasks == nil || cfg.History == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("%w: tasks, history and registry are required", ErrNotConfigured)
	}

	identity := cfg.Identity
	if identity == "" {
		identity = NewIdentity()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}

	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = NewTimeTicker
	}

	return &Scheduler{
		tasks:           cfg.Tasks,
		history:         cfg.History,
		registry:        cfg.Registry,
		publisher:       cfg.Publisher,
		metrics:         cfg.Metrics,
		logger:          telemetry.WithServerID(logger, identity.String()),
		identity:        identity,
		clock:           clock,
		newTicker:       newTicker,
		pollInterval:    orDefault(cfg.PollInterval, DefaultPollInterval),
		reclaimInterval: orDefault(cfg.ReclaimInterval, DefaultReclaimInterval),
		stuckThreshold:  orDefault(cfg.StuckThreshold, DefaultStuckThreshold),
		storeTimeout:    orDefault(cfg.StoreTimeout, DefaultStoreTimeout),
		publishTimeout:  orDefault(cfg.PublishTimeout, DefaultPublishTimeout),
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// ServerID возвращает идентификатор процесса.
func (s *Scheduler) ServerID() string {
	return s.identity.String()
}

// State возвращает текущее состояние.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// IsExecuting сообщает, выполняется ли сейчас задача.
func (s *Scheduler) IsExecuting() bool {
	return s.executing.Load()
}

// Functions возвращает имена зарегистрированных функций.
func (s *Scheduler) Functions() []string {
	return s.registry.Names()
}

// Start запускает цикл опроса и цикл reclaim.
//
// Если планировщик не в состоянии Stopped, вызов ничего не делает.
// Первый опрос выполняется сразу, дальше — каждые PollInterval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateStopped {
		return nil
	}
	s.setState(StateStarting)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("starting scheduler",
		"poll_interval", s.pollInterval,
		"reclaim_interval", s.reclaimInterval,
		"stuck_threshold", s.stuckThreshold,
		"functions", s.registry.Names(),
	)

	s.loops.Add(2)
	go func() {
		defer s.loops.Done()
		s.pollLoop(ctx)
	}()
	go func() {
		defer s.loops.Done()
		s.reclaimLoop(ctx)
	}()

	s.setState(StateRunning)
	s.logger.Info("scheduler started")
	return nil
}

// Stop останавливает планировщик.
//
// Порядок: остановка циклов, ожидание текущего выполнения (функция
// не прерывается, ожидание ограничено ctx), освобождение всех задач,
// которые всё ещё держит этот процесс. Если ctx истёк раньше, чем
// завершилось выполнение, возвращается ошибка ctx, но задачи всё
// равно освобождаются. Вне состояния Running вызов ничего не делает.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateRunning {
		return nil
	}
	s.setState(StateStopping)
	s.logger.Info("stopping scheduler...")

	s.cancel()
	s.loops.Wait()

	var waitErr error
	done := make(chan struct{})
	go func() {
		s.execWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("wait for running task: %w", ctx.Err())
		s.logger.Warn("shutdown deadline reached, task is still running")
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	released, err := s.tasks.ReleaseByServer(storeCtx, s.ServerID(), s.clock.Now())
	if err != nil {
		s.logger.Error("failed to release tasks on shutdown", "error", err)
	} else if released > 0 {
		s.logger.Info("released tasks on shutdown", "count", released)
	}

	s.setState(StateStopped)
	s.logger.Info("scheduler stopped")
	return errors.Join(waitErr, err)
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// pollLoop — цикл опроса due-задач.
func (s *Scheduler) pollLoop(ctx context.Context) {
	ticker := s.newTicker(s.pollInterval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.poll(ctx)
		}
	}
}

// reclaimLoop — цикл освобождения зависших задач.
func (s *Scheduler) reclaimLoop(ctx context.Context) {
	ticker := s.newTicker(s.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("reclaim sweep failed", "error", err)
			}
		}
	}
}

// poll — один тик опроса. Пока выполняется задача, ничего не делает.
func (s *Scheduler) poll(ctx context.Context) {
	if !s.executing.CompareAndSwap(false, true) {
		return
	}

	task, err := s.TryClaimOne(ctx)
	if err != nil || task == nil {
		s.executing.Store(false)
		if err != nil && ctx.Err() == nil {
			s.logger.Error("claim failed", "error", err)
		}
		return
	}

	s.metrics.SetExecuting(true)
	s.execWG.Add(1)
	go func() {
		defer s.execWG.Done()
		defer s.executing.Store(false)
		defer s.metrics.SetExecuting(false)

		// выполнение не прерывается остановкой планировщика
		s.Execute(context.WithoutCancel(ctx), task)
	}()
}

// TryClaimOne пытается забрать одну due-задачу.
//
// Возвращает nil, nil, если забирать нечего или транзакция проиграла
// конкурентному процессу.
func (s *Scheduler) TryClaimOne(ctx context.Context) (*domain.Task, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.tasks.ClaimDue(storeCtx, s.clock.Now(), s.ServerID())
	switch {
	case errors.Is(err, repo.ErrConflict):
		s.metrics.ObserveClaim(telemetry.ClaimResultConflict)
		s.logger.Debug("claim conflict, retry on next tick", "error", err)
		return nil, nil
	case err != nil:
		s.metrics.ObserveClaim(telemetry.ClaimResultError)
		return nil, fmt.Errorf("claim due task: %w", err)
	case task == nil:
		s.metrics.ObserveClaim(telemetry.ClaimResultEmpty)
		return nil, nil
	}

	s.metrics.ObserveClaim(telemetry.ClaimResultClaimed)
	telemetry.WithTask(s.logger, task.ID, task.Name, task.FunctionName).Info("task claimed")
	return task, nil
}

// withStore выполняет операцию с БД с таймаутом StoreTimeout.
func (s *Scheduler) withStore(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTimeout(ctx, s.storeTimeout, fn)
}

// withPublish выполняет публикацию события с таймаутом PublishTimeout.
func (s *Scheduler) withPublish(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTimeout(ctx, s.publishTimeout, fn)
}

func withTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

package taskfn

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shaiso/cronfleet/internal/telemetry"
)

// Default simulation bounds.
const (
	defaultMinDuration = 2 * time.Minute
	defaultMaxDuration = 3 * time.Minute
)

// Simulation задаёт длительность имитируемой работы встроенных функций.
//
// Полная длительность выбирается равномерно из [MinDuration, MaxDuration]
// и делится поровну между этапами функции.
type Simulation struct {
	MinDuration time.Duration
	MaxDuration time.Duration

	// Rand — источник случайности (для тестов). Если nil — глобальный.
	Rand *rand.Rand
}

// pick выбирает полную длительность одного выполнения.
func (s Simulation) pick() time.Duration {
	minD, maxD := s.MinDuration, s.MaxDuration
	if minD <= 0 && maxD <= 0 {
		minD, maxD = defaultMinDuration, defaultMaxDuration
	}
	if maxD < minD {
		maxD = minD
	}
	spread := int64(maxD - minD)
	if spread == 0 {
		return minD
	}
	if s.Rand != nil {
		return minD + time.Duration(s.Rand.Int64N(spread+1))
	}
	return minD + time.Duration(rand.Int64N(spread+1))
}

// Встроенные функции, на которые ссылаются seed-задачи из миграций.
var builtinStages = map[string][]string{
	"processData":     {"chunk-1", "chunk-2", "chunk-3", "chunk-4", "chunk-5", "chunk-6", "chunk-7", "chunk-8", "chunk-9", "chunk-10"},
	"cleanCache":      {"user-cache", "session-cache", "temp-cache", "api-cache", "db-cache"},
	"generateReports": {"user-activity", "performance", "errors", "analytics", "financial"},
	"analyzeLogs":     {"access.log", "error.log", "app.log", "db.log", "security.log"},
	"manageBackups":   {"cleanup-old-backups", "verify-integrity", "compress-archives", "sync-to-remote", "update-manifest"},
}

// NewBuiltinRegistry создаёт реестр со всеми встроенными функциями.
func NewBuiltinRegistry(sim Simulation, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := NewRegistry()
	for name, stages := range builtinStages {
		r.MustRegister(name, NewStagedFunc(name, stages, sim, logger))
	}
	return r
}

// StagedFunc — функция, имитирующая работу из нескольких этапов.
type StagedFunc struct {
	name   string
	stages []string
	sim    Simulation
	logger *slog.Logger
}

// NewStagedFunc создаёт StagedFunc.
func NewStagedFunc(name string, stages []string, sim Simulation, logger *slog.Logger) *StagedFunc {
	return &StagedFunc{
		name:   name,
		stages: stages,
		sim:    sim,
		logger: logger.With("function", name),
	}
}

// Run проходит все этапы по очереди.
// Ожидание прерывается только через ctx.
func (f *StagedFunc) Run(ctx context.Context) error {
	total := f.sim.pick()
	perStage := total / time.Duration(max(len(f.stages), 1))

	logger := telemetry.FromContextOr(ctx, f.logger)
	logger.Info("starting", "stages", len(f.stages), "planned", total)

	for i, stage := range f.stages {
		timer := time.NewTimer(perStage)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		logger.Debug("stage done", "stage", stage, "index", i+1)
	}

	logger.Info("finished", "duration", total)
	return nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/cronfleet/internal/domain"
	"github.com/shaiso/cronfleet/internal/mq"
	"github.com/shaiso/cronfleet/internal/repo"
	"github.com/shaiso/cronfleet/internal/telemetry"
)

// Execute выполняет забранную задачу и возвращает запись истории.
//
//  1. Находит функцию в Registry (неизвестное имя — failed)
//  2. Выполняет её; паника превращается в ошибку
//  3. Пишет запись истории (completed или failed)
//  4. Освобождает задачу: next_run_at = completedAt + interval
//
// Освобождение выполняется всегда, даже если запись истории не удалась.
// Ошибки хранилища логируются и не возвращаются: следующий тик
// или sweep восстановят согласованность.
func (s *Scheduler) Execute(ctx context.Context, task *domain.Task) *domain.TaskHistory {
	logger := telemetry.WithTask(s.logger, task.ID, task.Name, task.FunctionName)

	startedAt := s.clock.Now()
	if task.StartedAt != nil {
		startedAt = *task.StartedAt
	}

	runErr := s.run(telemetry.WithLogger(ctx, logger), task)
	completedAt := s.clock.Now()

	h := domain.NewTaskHistory(task, s.ServerID(), startedAt, completedAt, runErr)
	if runErr != nil {
		logger.Error("task failed", "duration", h.Duration(), "error", runErr)
	} else {
		logger.Info("task completed", "duration", h.Duration())
	}

	if err := s.withStore(ctx, func(ctx context.Context) error {
		return s.history.Create(ctx, h)
	}); err != nil {
		logger.Error("failed to record task history", "error", err)
	}

	if err := s.withStore(ctx, func(ctx context.Context) error {
		return s.tasks.Release(ctx, task, completedAt)
	}); err != nil {
		if errors.Is(err, repo.ErrClaimLost) {
			logger.Warn("task was reclaimed while running, release skipped", "error", err)
		} else {
			logger.Error("failed to release task", "error", err)
		}
	} else {
		logger.Debug("task released", "next_run_at", task.NextRunAfter(completedAt))
	}

	s.metrics.ObserveExecution(task.Name, h.Status.String(), h.Duration())
	s.publishExecuted(ctx, h)

	return h
}

// run находит и вызывает функцию задачи.
// Логгер задачи доступен функции через telemetry.FromContext.
func (s *Scheduler) run(ctx context.Context, task *domain.Task) (err error) {
	fn, err := s.registry.Get(task.FunctionName)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()

	return fn.Run(ctx)
}

func (s *Scheduler) publishExecuted(ctx context.Context, h *domain.TaskHistory) {
	if s.publisher == nil {
		return
	}

	err := s.withPublish(ctx, func(ctx context.Context) error {
		return s.publisher.PublishTaskExecuted(ctx, mq.TaskExecutedPayload{
			TaskID:      h.TaskID,
			TaskName:    h.TaskName,
			ServerID:    h.ServerID,
			StartedAt:   h.StartedAt,
			CompletedAt: h.CompletedAt,
			DurationMs:  h.DurationMs,
			Status:      h.Status.String(),
			Error:       h.ErrorMessage(),
		})
	})
	if err != nil {
		s.logger.Warn("failed to publish task event", "task_id", h.TaskID, "error", err)
	}
}

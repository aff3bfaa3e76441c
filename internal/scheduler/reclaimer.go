package scheduler

import (
	"context"
	"fmt"

	"github.com/shaiso/cronfleet/internal/mq"
	"github.com/shaiso/cronfleet/internal/repo"
)

// Sweep освобождает задачи, забранные StuckThreshold назад или раньше,
// независимо от того, какой процесс их держит.
//
// Для освобождённых задач next_run_at = now + interval, last_run_at
// не меняется, история не пишется. Возвращает число освобождённых задач.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.stuckThreshold)

	var reclaimed []repo.ReclaimedTask
	err := s.withStore(ctx, func(ctx context.Context) error {
		var err error
		reclaimed, err = s.tasks.ReclaimStuck(ctx, now, cutoff)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck tasks: %w", err)
	}

	for i := range reclaimed {
		rt := &reclaimed[i]
		s.logger.Warn("reclaimed stuck task",
			"task_id", rt.Task.ID,
			"task_name", rt.Task.Name,
			"previous_server_id", rt.PreviousServerID,
			"stuck_since", rt.StuckSince,
			"next_run_at", rt.Task.NextRunAt,
		)
		s.publishReclaimed(ctx, rt)
	}

	s.metrics.ObserveReclaimed(len(reclaimed))
	if len(reclaimed) > 0 {
		s.logger.Info("reclaim sweep completed", "reclaimed", len(reclaimed))
	}
	return len(reclaimed), nil
}

func (s *Scheduler) publishReclaimed(ctx context.Context, rt *repo.ReclaimedTask) {
	if s.publisher == nil {
		return
	}

	err := s.withPublish(ctx, func(ctx context.Context) error {
		return s.publisher.PublishTaskReclaimed(ctx, mq.TaskReclaimedPayload{
			TaskID:           rt.Task.ID,
			TaskName:         rt.Task.Name,
			PreviousServerID: rt.PreviousServerID,
			StuckSince:       rt.StuckSince,
			ReclaimedBy:      s.ServerID(),
			NextRunAt:        rt.Task.NextRunAt,
		})
	})
	if err != nil {
		s.logger.Warn("failed to publish reclaim event", "task_id", rt.Task.ID, "error", err)
	}
}

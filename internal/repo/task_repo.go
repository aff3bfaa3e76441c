package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/cronfleet/internal/domain"
)

const taskColumns = `id, name, interval_sec, function_name, is_running, server_id,
		       started_at, last_run_at, next_run_at, created_at, updated_at`

// TaskRepo — репозиторий для работы с tasks.
//
// Все изменения строки задачи проходят через три операции:
// ClaimDue, Release и ReclaimStuck (плюс ReleaseByServer при остановке).
// Каждая — одна транзакция с повторной проверкой условия в WHERE.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// ClaimDue атомарно забирает одну due-задачу для serverID.
//
// В одной SERIALIZABLE транзакции:
//  1. SELECT ... FOR UPDATE SKIP LOCKED самой ранней due-задачи
//     (next_run_at ASC, id ASC); строки, заблокированные другими
//     процессами, пропускаются без ожидания
//  2. UPDATE с повторной проверкой is_running = false AND next_run_at <= now
//
// Возвращает nil, nil, если забирать нечего. Конфликт транзакций
// возвращается как ErrConflict.
func (r *TaskRepo) ClaimDue(ctx context.Context, now time.Time, serverID string) (*domain.Task, error) {
	var claimed *domain.Task

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `
			SELECT id
			FROM tasks
			WHERE is_running = false
			  AND next_run_at <= $1
			ORDER BY next_run_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, now).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select due task: %w", err)
		}

		task, err := scanTask(tx.QueryRow(ctx, `
			UPDATE tasks
			SET is_running = true, server_id = $2, started_at = $3, updated_at = $3
			WHERE id = $1
			  AND is_running = false
			  AND next_run_at <= $3
			RETURNING `+taskColumns,
			id, serverID, now,
		))
		if errors.Is(err, ErrNotFound) {
			// условие перестало выполняться между SELECT и UPDATE
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim task %d: %w", id, err)
		}

		claimed = task
		return nil
	})
	if err != nil {
		if isConflict(err) {
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, fmt.Errorf("claim due task: %w", err)
	}
	return claimed, nil
}

// Release освобождает задачу после выполнения и переносит next_run_at.
//
// Обновление защищено server_id и started_at claim: если задачу уже
// освободил sweep (и, возможно, забрал другой процесс), строка не
// меняется и возвращается ErrClaimLost.
func (r *TaskRepo) Release(ctx context.Context, task *domain.Task, completedAt time.Time) error {
	if !task.IsRunning || task.ServerID == nil || task.StartedAt == nil {
		return fmt.Errorf("%w: task %d is not claimed", ErrInvalidState, task.ID)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET is_running = false, server_id = NULL, started_at = NULL,
		    last_run_at = $4, next_run_at = $5, updated_at = $4
		WHERE id = $1
		  AND is_running = true
		  AND server_id = $2
		  AND started_at = $3
	`,
		task.ID,
		*task.ServerID,
		*task.StartedAt,
		completedAt,
		task.NextRunAfter(completedAt),
	)
	if err != nil {
		return fmt.Errorf("release task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %d", ErrClaimLost, task.ID)
	}
	return nil
}

// ReclaimedTask — задача, принудительно освобождённая sweep'ом.
type ReclaimedTask struct {
	Task domain.Task

	// PreviousServerID — процесс, державший claim.
	PreviousServerID string

	// StuckSince — started_at зависшего claim.
	StuckSince time.Time
}

// ReclaimStuck освобождает все задачи, забранные не позже cutoff.
//
// Одним UPDATE: is_running = false, server_id/started_at = NULL,
// next_run_at = now + interval. last_run_at не меняется, история не пишется.
func (r *TaskRepo) ReclaimStuck(ctx context.Context, now, cutoff time.Time) ([]ReclaimedTask, error) {
	rows, err := r.pool.Query(ctx, `
		WITH stuck AS (
			SELECT id, server_id, started_at
			FROM tasks
			WHERE is_running = true
			  AND started_at <= $2
			ORDER BY started_at ASC
			FOR UPDATE SKIP LOCKED
		)
		UPDATE tasks t
		SET is_running = false, server_id = NULL, started_at = NULL,
		    next_run_at = $1::timestamptz + t.interval_sec * INTERVAL '1 second',
		    updated_at = $1
		FROM stuck
		WHERE t.id = stuck.id
		RETURNING t.id, t.name, t.interval_sec, t.function_name, t.is_running, t.server_id,
		          t.started_at, t.last_run_at, t.next_run_at, t.created_at, t.updated_at,
		          stuck.server_id, stuck.started_at
	`, now, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reclaim stuck tasks: %w", err)
	}
	defer rows.Close()

	var reclaimed []ReclaimedTask
	for rows.Next() {
		var rt ReclaimedTask
		t := &rt.Task
		if err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.IntervalSec,
			&t.FunctionName,
			&t.IsRunning,
			&t.ServerID,
			&t.StartedAt,
			&t.LastRunAt,
			&t.NextRunAt,
			&t.CreatedAt,
			&t.UpdatedAt,
			&rt.PreviousServerID,
			&rt.StuckSince,
		); err != nil {
			return nil, fmt.Errorf("scan reclaimed task: %w", err)
		}
		reclaimed = append(reclaimed, rt)
	}
	return reclaimed, rows.Err()
}

// ReleaseByServer освобождает все задачи, которые держит serverID.
//
// Вызывается при штатной остановке процесса, чтобы не ждать порога
// зависания. next_run_at переносится на now + interval, как при любом
// другом освобождении.
func (r *TaskRepo) ReleaseByServer(ctx context.Context, serverID string, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET is_running = false, server_id = NULL, started_at = NULL,
		    next_run_at = $2::timestamptz + interval_sec * INTERVAL '1 second',
		    updated_at = $2
		WHERE is_running = true
		  AND server_id = $1
	`, serverID, now)
	if err != nil {
		return 0, fmt.Errorf("release tasks by server: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetByID возвращает задачу по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1
	`, id))
}

// GetByName возвращает задачу по имени.
func (r *TaskRepo) GetByName(ctx context.Context, name string) (*domain.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE name = $1
	`, name))
}

// List возвращает все задачи, отсортированные по имени.
func (r *TaskRepo) List(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Counts возвращает счётчики задач по состоянию claim.
func (r *TaskRepo) Counts(ctx context.Context) (domain.TaskCounts, error) {
	var c domain.TaskCounts
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_running),
		       COUNT(*) FILTER (WHERE NOT is_running)
		FROM tasks
	`).Scan(&c.Total, &c.Running, &c.Waiting)
	if err != nil {
		return domain.TaskCounts{}, fmt.Errorf("count tasks: %w", err)
	}
	return c, nil
}

// --- Helpers ---

// scanTask сканирует строку (pgx.Row или pgx.Rows) в Task.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.IntervalSec,
		&t.FunctionName,
		&t.IsRunning,
		&t.ServerID,
		&t.StartedAt,
		&t.LastRunAt,
		&t.NextRunAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

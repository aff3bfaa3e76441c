package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/cronfleet/internal/domain"
)

const historyColumns = `id, task_id, task_name, server_id, started_at, completed_at,
		       duration_ms, status, error, created_at`

// HistoryRepo — репозиторий для работы с task_history.
//
// Записи только добавляются, ядро их не изменяет и не удаляет.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Create добавляет запись истории и заполняет ID и CreatedAt.
func (r *HistoryRepo) Create(ctx context.Context, h *domain.TaskHistory) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO task_history (task_id, task_name, server_id, started_at, completed_at,
		                          duration_ms, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`,
		h.TaskID,
		h.TaskName,
		h.ServerID,
		h.StartedAt,
		h.CompletedAt,
		h.DurationMs,
		string(h.Status),
		h.Error,
	).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task history: %w", err)
	}
	return nil
}

// HistoryFilter — параметры фильтрации истории.
type HistoryFilter struct {
	TaskName string
	ServerID string
	Status   domain.HistoryStatus
	Limit    int
	Offset   int
}

// List возвращает страницу истории (completed_at DESC) и общее число
// записей, подходящих под фильтр.
func (r *HistoryRepo) List(ctx context.Context, filter HistoryFilter) ([]domain.TaskHistory, int, error) {
	args := []any{
		nullString(filter.TaskName),
		nullString(filter.ServerID),
		nullString(string(filter.Status)),
	}
	where := `
		WHERE ($1::text IS NULL OR task_name = $1)
		  AND ($2::text IS NULL OR server_id = $2)
		  AND ($3::text IS NULL OR status = $3::task_history_status)
	`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM task_history`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count task history: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+historyColumns+`
		FROM task_history`+where+`
		ORDER BY completed_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	history, err := collectHistory(rows)
	if err != nil {
		return nil, 0, err
	}
	return history, total, nil
}

// ListByTask возвращает последние limit записей для задачи.
func (r *HistoryRepo) ListByTask(ctx context.Context, taskID int64, limit int) ([]domain.TaskHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+historyColumns+`
		FROM task_history
		WHERE task_id = $1
		ORDER BY completed_at DESC, id DESC
		LIMIT $2
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list task history by task: %w", err)
	}
	defer rows.Close()

	return collectHistory(rows)
}

// CountByTask возвращает число записей истории для задачи.
func (r *HistoryRepo) CountByTask(ctx context.Context, taskID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM task_history WHERE task_id = $1
	`, taskID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count task history: %w", err)
	}
	return count, nil
}

// Stats собирает статистику выполнений с момента since:
// счётчики по статусам, среднюю длительность успешных выполнений
// по задачам и список процессов, выполнявших задачи.
//
// Поле Tasks не заполняется (см. TaskRepo.Counts).
func (r *HistoryRepo) Stats(ctx context.Context, since time.Time) (*domain.Stats, error) {
	stats := &domain.Stats{
		Performance:   []domain.TaskPerformance{},
		ActiveServers: []string{},
	}

	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed')
		FROM task_history
		WHERE completed_at >= $1
	`, since).Scan(&stats.Executions.Total, &stats.Executions.Completed, &stats.Executions.Failed)
	if err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT task_name, AVG(duration_ms)::float8, COUNT(*)
		FROM task_history
		WHERE completed_at >= $1
		  AND status = 'completed'
		GROUP BY task_name
		ORDER BY task_name ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("task performance: %w", err)
	}
	for rows.Next() {
		var p domain.TaskPerformance
		var avgMs float64
		if err := rows.Scan(&p.TaskName, &avgMs, &p.ExecutionCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task performance: %w", err)
		}
		p.AvgDuration = time.Duration(avgMs * float64(time.Millisecond))
		stats.Performance = append(stats.Performance, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task performance: %w", err)
	}

	servers, err := r.pool.Query(ctx, `
		SELECT DISTINCT server_id
		FROM task_history
		WHERE completed_at >= $1
		ORDER BY server_id ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("active servers: %w", err)
	}
	ids, err := pgx.CollectRows(servers, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("active servers: %w", err)
	}
	stats.ActiveServers = append(stats.ActiveServers, ids...)

	return stats, nil
}

// --- Helpers ---

// collectHistory сканирует все строки в TaskHistory.
func collectHistory(rows pgx.Rows) ([]domain.TaskHistory, error) {
	history := []domain.TaskHistory{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *h)
	}
	return history, rows.Err()
}

// scanHistory сканирует строку в TaskHistory.
func scanHistory(row pgx.Row) (*domain.TaskHistory, error) {
	var h domain.TaskHistory
	var status string

	err := row.Scan(
		&h.ID,
		&h.TaskID,
		&h.TaskName,
		&h.ServerID,
		&h.StartedAt,
		&h.CompletedAt,
		&h.DurationMs,
		&status,
		&h.Error,
		&h.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan task history: %w", err)
	}
	h.Status = domain.HistoryStatus(status)
	return &h, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

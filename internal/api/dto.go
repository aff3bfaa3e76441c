package api

import (
	"time"

	"github.com/shaiso/cronfleet/internal/domain"
)

// Task DTOs

// TaskResponse — задача с производным статусом на момент запроса.
type TaskResponse struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	IntervalSec  int        `json:"interval_sec"`
	FunctionName string     `json:"function_name"`
	Status       string     `json:"status"`
	IsRunning    bool       `json:"is_running"`
	ServerID     *string    `json:"server_id,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	NextRunAt    time.Time  `json:"next_run_at"`

	RunningTimeMs      int64  `json:"running_time_ms,omitempty"`
	RunningTime        string `json:"running_time,omitempty"`
	TimeUntilNextRunMs int64  `json:"time_until_next_run_ms,omitempty"`
	TimeUntilNextRun   string `json:"time_until_next_run,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task, now time.Time) TaskResponse {
	resp := TaskResponse{
		ID:           t.ID,
		Name:         t.Name,
		IntervalSec:  t.IntervalSec,
		FunctionName: t.FunctionName,
		Status:       string(t.StatusAt(now)),
		IsRunning:    t.IsRunning,
		ServerID:     t.ServerID,
		StartedAt:    t.StartedAt,
		LastRunAt:    t.LastRunAt,
		NextRunAt:    t.NextRunAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}

	if d := t.RunningFor(now); d > 0 {
		resp.RunningTimeMs = d.Milliseconds()
		resp.RunningTime = domain.FormatDuration(d)
	}
	if d := t.TimeUntilNextRun(now); d > 0 {
		resp.TimeUntilNextRunMs = d.Milliseconds()
		resp.TimeUntilNextRun = domain.FormatDuration(d)
	}
	return resp
}

// TaskDetailResponse — задача и последние записи её истории.
type TaskDetailResponse struct {
	TaskResponse
	RecentHistory []HistoryResponse `json:"recent_history"`
}

// History DTOs

// HistoryResponse — запись истории.
type HistoryResponse struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	TaskName    string    `json:"task_name"`
	ServerID    string    `json:"server_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Duration    string    `json:"duration"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// HistoryFromDomain конвертирует domain.TaskHistory в HistoryResponse.
func HistoryFromDomain(h domain.TaskHistory) HistoryResponse {
	return HistoryResponse{
		ID:          h.ID,
		TaskID:      h.TaskID,
		TaskName:    h.TaskName,
		ServerID:    h.ServerID,
		StartedAt:   h.StartedAt,
		CompletedAt: h.CompletedAt,
		DurationMs:  h.DurationMs,
		Duration:    domain.FormatDuration(h.Duration()),
		Status:      h.Status.String(),
		Error:       h.ErrorMessage(),
	}
}

func historyList(records []domain.TaskHistory) []HistoryResponse {
	out := make([]HistoryResponse, len(records))
	for i, h := range records {
		out[i] = HistoryFromDomain(h)
	}
	return out
}

// Pagination — параметры страницы.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// HistoryListResponse — страница истории.
type HistoryListResponse struct {
	Data       []HistoryResponse `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// Stats DTOs

// StatsResponse — статистика за окно.
type StatsResponse struct {
	Window        string                `json:"window"`
	Tasks         domain.TaskCounts     `json:"tasks"`
	Executions    ExecutionsResponse    `json:"executions"`
	Performance   []PerformanceResponse `json:"performance"`
	ActiveServers []string              `json:"active_servers"`
}

// ExecutionsResponse — счётчики выполнений.
type ExecutionsResponse struct {
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
	Rate        string  `json:"success_rate_formatted"`
}

// PerformanceResponse — средняя длительность успешных выполнений задачи.
type PerformanceResponse struct {
	TaskName       string `json:"task_name"`
	AvgDurationMs  int64  `json:"avg_duration_ms"`
	AvgDuration    string `json:"avg_duration"`
	ExecutionCount int    `json:"execution_count"`
}

// StatsFromDomain конвертирует domain.Stats в StatsResponse.
func StatsFromDomain(s *domain.Stats) StatsResponse {
	resp := StatsResponse{
		Window: s.Window.String(),
		Tasks:  s.Tasks,
		Executions: ExecutionsResponse{
			Total:       s.Executions.Total,
			Completed:   s.Executions.Completed,
			Failed:      s.Executions.Failed,
			SuccessRate: s.SuccessRate(),
			Rate:        s.SuccessRateString(),
		},
		Performance:   make([]PerformanceResponse, len(s.Performance)),
		ActiveServers: s.ActiveServers,
	}
	if resp.ActiveServers == nil {
		resp.ActiveServers = []string{}
	}
	for i, p := range s.Performance {
		resp.Performance[i] = PerformanceResponse{
			TaskName:       p.TaskName,
			AvgDurationMs:  p.AvgDuration.Milliseconds(),
			AvgDuration:    domain.FormatDuration(p.AvgDuration),
			ExecutionCount: p.ExecutionCount,
		}
	}
	return resp
}

// Scheduler DTOs

// SchedulerResponse — состояние планировщика этого процесса.
type SchedulerResponse struct {
	ServerID  string   `json:"server_id"`
	State     string   `json:"state"`
	Executing bool     `json:"executing"`
	Functions []string `json:"functions"`
}

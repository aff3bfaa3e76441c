package domain

import (
	"fmt"
	"time"
)

// TaskCounts — счётчики задач по состоянию claim.
type TaskCounts struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Waiting int `json:"waiting"` // is_running = false
}

// TaskPerformance — средняя длительность успешных выполнений задачи.
type TaskPerformance struct {
	TaskName       string        `json:"task_name"`
	AvgDuration    time.Duration `json:"avg_duration"`
	ExecutionCount int           `json:"execution_count"`
}

// ExecutionCounts — счётчики выполнений за окно.
type ExecutionCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Stats — агрегированная статистика планировщика за окно.
type Stats struct {
	Tasks         TaskCounts        `json:"tasks"`
	Executions    ExecutionCounts   `json:"executions"`
	Performance   []TaskPerformance `json:"performance"`
	ActiveServers []string          `json:"active_servers"`
	Window        time.Duration     `json:"window"`
}

// SuccessRate возвращает долю успешных выполнений в процентах.
// Без выполнений — 0.
func (s *Stats) SuccessRate() float64 {
	if s.Executions.Total == 0 {
		return 0
	}
	return float64(s.Executions.Completed) / float64(s.Executions.Total) * 100
}

// SuccessRateString форматирует SuccessRate как "97.50%".
func (s *Stats) SuccessRateString() string {
	return fmt.Sprintf("%.2f%%", s.SuccessRate())
}

// FormatDuration форматирует длительность как "1h 2m 3s", "4m 5s" или "6s".
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes%60, seconds%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

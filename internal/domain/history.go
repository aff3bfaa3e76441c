package domain

import "time"

// TaskHistory — неизменяемая запись об одной попытке выполнения задачи.
//
// Создаётся Executor'ом ровно один раз на попытку. Ядро записи
// не изменяет и не удаляет (retention — внешняя забота).
type TaskHistory struct {
	// ID — идентификатор записи.
	ID int64 `json:"id"`

	// TaskID — ссылка на задачу.
	TaskID int64 `json:"task_id"`

	// TaskName — имя задачи на момент выполнения.
	TaskName string `json:"task_name"`

	// ServerID — процесс, выполнявший задачу.
	ServerID string `json:"server_id"`

	// StartedAt — момент claim.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — момент завершения функции.
	CompletedAt time.Time `json:"completed_at"`

	// DurationMs — CompletedAt - StartedAt в миллисекундах.
	DurationMs int64 `json:"duration_ms"`

	// Status — completed или failed.
	Status HistoryStatus `json:"status"`

	// Error — сообщение об ошибке, задано только для failed.
	Error *string `json:"error,omitempty"`

	// CreatedAt — время вставки записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskHistory собирает запись истории для завершённой попытки.
// runErr == nil означает completed.
func NewTaskHistory(task *Task, serverID string, startedAt, completedAt time.Time, runErr error) *TaskHistory {
	h := &TaskHistory{
		TaskID:      task.ID,
		TaskName:    task.Name,
		ServerID:    serverID,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMs:  completedAt.Sub(startedAt).Milliseconds(),
		Status:      HistoryStatusCompleted,
	}
	if runErr != nil {
		msg := runErr.Error()
		h.Status = HistoryStatusFailed
		h.Error = &msg
	}
	return h
}

// Duration возвращает продолжительность выполнения.
func (h *TaskHistory) Duration() time.Duration {
	return time.Duration(h.DurationMs) * time.Millisecond
}

// ErrorMessage возвращает текст ошибки или пустую строку.
func (h *TaskHistory) ErrorMessage() string {
	if h.Error == nil {
		return ""
	}
	return *h.Error
}

package domain

import "fmt"

// TaskStatus — производный статус задачи для мониторинга.
//
// Не хранится в БД, вычисляется через Task.StatusAt:
//
//	running   — задача забрана процессом (is_running)
//	scheduled — next_run_at в будущем
//	waiting   — задача due, но ещё никем не забрана
type TaskStatus string

const (
	// TaskStatusRunning — задача выполняется.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusScheduled — задача ждёт своего next_run_at.
	TaskStatusScheduled TaskStatus = "scheduled"

	// TaskStatusWaiting — задача due и ждёт claim.
	TaskStatusWaiting TaskStatus = "waiting"
)

// HistoryStatus — результат одной попытки выполнения.
//
// Принудительный reclaim не создаёт записи истории, поэтому
// статусов ровно два.
type HistoryStatus string

const (
	// HistoryStatusCompleted — функция завершилась без ошибки.
	HistoryStatusCompleted HistoryStatus = "completed"

	// HistoryStatusFailed — функция вернула ошибку (или не найдена).
	HistoryStatusFailed HistoryStatus = "failed"
)

// String возвращает строковое представление HistoryStatus.
func (s HistoryStatus) String() string {
	return string(s)
}

// ParseHistoryStatus парсит строку в HistoryStatus.
func ParseHistoryStatus(s string) (HistoryStatus, error) {
	switch s {
	case "completed":
		return HistoryStatusCompleted, nil
	case "failed":
		return HistoryStatusFailed, nil
	default:
		return "", fmt.Errorf("unknown history status %q", s)
	}
}

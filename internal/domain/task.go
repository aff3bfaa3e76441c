package domain

import (
	"time"
)

// Task — периодическая задача, разделяемая всеми процессами флота.
//
// Набор задач фиксирован: строки создаются миграциями, ядро планировщика
// их не создаёт и не удаляет. Меняется задача только тремя операциями:
//   - claim (процесс забирает due-задачу себе)
//   - release (процесс завершил выполнение)
//   - reclaim (sweep освобождает зависшую задачу)
type Task struct {
	// ID — идентификатор задачи.
	ID int64 `json:"id"`

	// Name — уникальное человекочитаемое имя ("data-processor").
	Name string `json:"name"`

	// IntervalSec — период повторного запуска в секундах.
	IntervalSec int `json:"interval_sec"`

	// FunctionName — ключ в реестре функций (taskfn.Registry).
	FunctionName string `json:"function_name"`

	// IsRunning — задача забрана каким-то процессом.
	// IsRunning == true тогда и только тогда, когда ServerID и StartedAt заданы.
	IsRunning bool `json:"is_running"`

	// ServerID — идентификатор процесса-владельца claim.
	ServerID *string `json:"server_id,omitempty"`

	// StartedAt — момент claim.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// LastRunAt — время последнего завершения выполнения.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// NextRunAt — с этого момента задача становится due.
	NextRunAt time.Time `json:"next_run_at"`

	// CreatedAt — время создания строки.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения строки.
	UpdatedAt time.Time `json:"updated_at"`
}

// Interval возвращает период задачи как time.Duration.
func (t *Task) Interval() time.Duration {
	return time.Duration(t.IntervalSec) * time.Second
}

// NextRunAfter вычисляет NextRunAt для release, выполненного в момент at.
func (t *Task) NextRunAfter(at time.Time) time.Time {
	return at.Add(t.Interval())
}

// IsDue проверяет, может ли задача быть забрана в момент now.
func (t *Task) IsDue(now time.Time) bool {
	return !t.IsRunning && !t.NextRunAt.After(now)
}

// IsClaimConsistent проверяет инвариант "нет половинчатых claim":
// IsRunning выставлен ровно тогда, когда заданы и ServerID, и StartedAt.
func (t *Task) IsClaimConsistent() bool {
	claimed := t.ServerID != nil && t.StartedAt != nil
	unclaimed := t.ServerID == nil && t.StartedAt == nil
	if t.IsRunning {
		return claimed
	}
	return unclaimed
}

// StatusAt вычисляет производный статус задачи на момент now.
func (t *Task) StatusAt(now time.Time) TaskStatus {
	if t.IsRunning && t.StartedAt != nil {
		return TaskStatusRunning
	}
	if t.NextRunAt.After(now) {
		return TaskStatusScheduled
	}
	return TaskStatusWaiting
}

// RunningFor возвращает, сколько задача уже выполняется.
// Для незабранной задачи — 0.
func (t *Task) RunningFor(now time.Time) time.Duration {
	if !t.IsRunning || t.StartedAt == nil {
		return 0
	}
	return now.Sub(*t.StartedAt)
}

// TimeUntilNextRun возвращает время до следующего запуска.
// Если задача уже due или выполняется — 0.
func (t *Task) TimeUntilNextRun(now time.Time) time.Duration {
	if t.StatusAt(now) != TaskStatusScheduled {
		return 0
	}
	return t.NextRunAt.Sub(now)
}

// Holder возвращает ServerID владельца claim или пустую строку.
func (t *Task) Holder() string {
	if t.ServerID == nil {
		return ""
	}
	return *t.ServerID
}

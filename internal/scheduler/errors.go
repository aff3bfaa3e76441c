package scheduler

import "errors"

var (
	// ErrNotConfigured — в Config не заданы обязательные зависимости.
	ErrNotConfigured = errors.New("scheduler is not configured")

	// ErrTaskPanic — функция задачи завершилась паникой.
	ErrTaskPanic = errors.New("task function panicked")
)

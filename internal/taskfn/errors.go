package taskfn

import "errors"

// Ошибки реестра функций.
var (
	// ErrFunctionNotFound — function_name задачи не зарегистрирован.
	ErrFunctionNotFound = errors.New("task function not found")

	// ErrDuplicateFunction — имя уже занято другой функцией.
	ErrDuplicateFunction = errors.New("function already registered")

	// ErrInvalidFunction — пустое имя или nil-функция.
	ErrInvalidFunction = errors.New("invalid function")
)

package taskfn

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func — единица работы, на которую ссылается task.function_name.
//
// Run должен быть идемпотентным или безопасным при перекрытии:
// если выполнение дольше порога зависания, sweep освободит задачу,
// и другой процесс может запустить её повторно.
type Func interface {
	Run(ctx context.Context) error
}

// FuncOf адаптирует обычную функцию к интерфейсу Func.
type FuncOf func(ctx context.Context) error

// Run вызывает f(ctx).
func (f FuncOf) Run(ctx context.Context) error {
	return f(ctx)
}

// Registry — реестр функций задач по имени.
//
// Проверки выполняются при регистрации: пустое имя, nil-функция
// и повторная регистрация — ошибки. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Func),
	}
}

// Register добавляет функцию под именем name.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFunction)
	}
	if fn == nil {
		return fmt.Errorf("%w: %s is nil", ErrInvalidFunction, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}
	r.funcs[name] = fn
	return nil
}

// MustRegister как Register, но паникует при ошибке.
// Используется для статической регистрации при старте процесса.
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Get возвращает функцию по имени.
// Возвращает ErrFunctionNotFound, если имя не зарегистрировано.
func (r *Registry) Get(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return fn, nil
}

// Has проверяет, зарегистрирована ли функция.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Names возвращает отсортированный список имён.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

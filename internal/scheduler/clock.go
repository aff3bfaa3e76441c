package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// ClockFunc адаптирует функцию к Clock.
type ClockFunc func() time.Time

// Now вызывает f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock — системные часы в UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// Ticker — источник тиков для циклов планировщика.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory создаёт Ticker с заданным периодом.
type TickerFactory func(d time.Duration) Ticker

// NewTimeTicker — TickerFactory поверх time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Identity — идентификатор процесса, которым помечаются claim'ы.
// Неизменен на всё время жизни процесса.
type Identity string

// NewIdentity генерирует случайный идентификатор (UUID v4).
func NewIdentity() Identity {
	return Identity(uuid.NewString())
}

// String возвращает идентификатор как строку.
func (id Identity) String() string { return string(id) }

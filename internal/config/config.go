// Package config загружает конфигурацию процессов из окружения.
//
// Источник — переменные окружения; если рядом лежит .env, он подгружается
// первым (уже выставленные переменные не перезаписываются).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Значения по умолчанию.
const (
	DefaultAPIPort         = "8080"
	DefaultWorkerPort      = "8082"
	DefaultPollInterval    = time.Second
	DefaultReclaimInterval = 60 * time.Second
	DefaultStuckThreshold  = 5 * time.Minute
	DefaultStoreTimeout    = 10 * time.Second
	DefaultTaskMinDuration = 2 * time.Minute
	DefaultTaskMaxDuration = 3 * time.Minute
	DefaultStatsWindow     = 24 * time.Hour
)

// ErrInvalidConfig — конфигурация не прошла проверку.
var ErrInvalidConfig = errors.New("invalid config")

// Config — конфигурация процесса.
type Config struct {
	DBURL       string
	RabbitMQURL string // пусто — события отключены

	APIPort    string
	WorkerPort string

	PollInterval    time.Duration
	ReclaimInterval time.Duration
	StuckThreshold  time.Duration
	StoreTimeout    time.Duration

	// ShutdownTimeout ограничивает ожидание текущей задачи при остановке
	// (default: STUCK_THRESHOLD).
	ShutdownTimeout time.Duration

	// Длительность встроенных функций-симуляций.
	TaskMinDuration time.Duration
	TaskMaxDuration time.Duration

	MigrateOnStart bool
	StatsWindow    time.Duration
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию из произвольного источника переменных.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DBURL:       getenv("DB_URL"),
		RabbitMQURL: strings.TrimSpace(getenv("RABBITMQ_URL")),
		APIPort:     stringOr(getenv("API_PORT"), DefaultAPIPort),
		WorkerPort:  stringOr(getenv("WORKER_PORT"), DefaultWorkerPort),
	}

	durations := []struct {
		name string
		dst  *time.Duration
		def  time.Duration
	}{
		{"POLL_INTERVAL", &cfg.PollInterval, DefaultPollInterval},
		{"RECLAIM_INTERVAL", &cfg.ReclaimInterval, DefaultReclaimInterval},
		{"STUCK_THRESHOLD", &cfg.StuckThreshold, DefaultStuckThreshold},
		{"STORE_TIMEOUT", &cfg.StoreTimeout, DefaultStoreTimeout},
		{"TASK_MIN_DURATION", &cfg.TaskMinDuration, DefaultTaskMinDuration},
		{"TASK_MAX_DURATION", &cfg.TaskMaxDuration, DefaultTaskMaxDuration},
		{"STATS_WINDOW", &cfg.StatsWindow, DefaultStatsWindow},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout, 0},
	}
	for _, d := range durations {
		v, err := parseDurationOrDefault(d.name, getenv(d.name), d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = cfg.StuckThreshold
	}

	migrate, err := parseBoolOrDefault("MIGRATE_ON_START", getenv("MIGRATE_ON_START"), true)
	if err != nil {
		return nil, err
	}
	cfg.MigrateOnStart = migrate

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность значений.
//
// Порог зависания должен быть больше максимальной длительности задачи,
// иначе sweep будет освобождать задачи, которые ещё выполняются.
// Таймаут остановки тоже: иначе процесс завершится посреди выполнения.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    time.Duration
	}{
		{"POLL_INTERVAL", c.PollInterval},
		{"RECLAIM_INTERVAL", c.ReclaimInterval},
		{"STUCK_THRESHOLD", c.StuckThreshold},
		{"STORE_TIMEOUT", c.StoreTimeout},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, p.name, p.v)
		}
	}

	if c.TaskMinDuration > c.TaskMaxDuration {
		return fmt.Errorf("%w: TASK_MIN_DURATION (%s) > TASK_MAX_DURATION (%s)",
			ErrInvalidConfig, c.TaskMinDuration, c.TaskMaxDuration)
	}
	if c.StuckThreshold <= c.TaskMaxDuration {
		return fmt.Errorf("%w: STUCK_THRESHOLD (%s) must be greater than TASK_MAX_DURATION (%s)",
			ErrInvalidConfig, c.StuckThreshold, c.TaskMaxDuration)
	}
	if c.ShutdownTimeout <= c.TaskMaxDuration {
		return fmt.Errorf("%w: SHUTDOWN_TIMEOUT (%s) must be greater than TASK_MAX_DURATION (%s)",
			ErrInvalidConfig, c.ShutdownTimeout, c.TaskMaxDuration)
	}
	return nil
}

// EventsEnabled сообщает, настроен ли RabbitMQ.
func (c *Config) EventsEnabled() bool {
	return c.RabbitMQURL != ""
}

func stringOr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// parseDurationOrDefault разбирает Go duration; пусто или 0 — значение по умолчанию.
func parseDurationOrDefault(name, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: invalid duration %q: %v", ErrInvalidConfig, name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: duration must be >= 0", ErrInvalidConfig, name)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

func parseBoolOrDefault(name, raw string, def bool) (bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s: invalid bool %q", ErrInvalidConfig, name, raw)
	}
	return b, nil
}

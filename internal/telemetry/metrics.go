package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попытки claim (label result).
const (
	ClaimResultClaimed  = "claimed"
	ClaimResultEmpty    = "empty"
	ClaimResultConflict = "conflict"
	ClaimResultError    = "error"
)

// SchedulerMetrics — Prometheus метрики планировщика.
//
// Методы безопасны для nil-получателя: планировщик без метрик
// просто ничего не пишет.
type SchedulerMetrics struct {
	claims    *prometheus.CounterVec
	execs     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	reclaimed prometheus.Counter
	executing prometheus.Gauge
}

// NewSchedulerMetrics создаёт метрики и регистрирует их в reg.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronfleet_claims_total",
			Help: "Claim attempts by result (claimed, empty, conflict, error).",
		}, []string{"result"}),
		execs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cronfleet_executions_total",
			Help: "Finished task executions by task and status.",
		}, []string{"task", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cronfleet_execution_duration_seconds",
			Help:    "Task execution duration from claim to completion.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 240, 300, 600},
		}, []string{"task"}),
		reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cronfleet_reclaimed_tasks_total",
			Help: "Stuck tasks released by the sweep of this process.",
		}),
		executing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cronfleet_executing",
			Help: "1 while this process executes a task, 0 otherwise.",
		}),
	}

	reg.MustRegister(m.claims, m.execs, m.duration, m.reclaimed, m.executing)
	return m
}

// ObserveClaim учитывает попытку claim.
func (m *SchedulerMetrics) ObserveClaim(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(result).Inc()
}

// ObserveExecution учитывает завершённое выполнение.
func (m *SchedulerMetrics) ObserveExecution(task, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.execs.WithLabelValues(task, status).Inc()
	m.duration.WithLabelValues(task).Observe(d.Seconds())
}

// ObserveReclaimed учитывает освобождённые sweep'ом задачи.
func (m *SchedulerMetrics) ObserveReclaimed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reclaimed.Add(float64(n))
}

// SetExecuting выставляет gauge выполнения.
func (m *SchedulerMetrics) SetExecuting(executing bool) {
	if m == nil {
		return
	}
	if executing {
		m.executing.Set(1)
	} else {
		m.executing.Set(0)
	}
}

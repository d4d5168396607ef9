// Package metrics exposes the worker subsystem's Prometheus instrumentation.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
)

type Metrics struct {
	workerRuns     *prometheus.CounterVec
	workerDuration *prometheus.HistogramVec
	workerRestarts *prometheus.CounterVec
	pushAttempts   *prometheus.CounterVec
	purchasesTotal *prometheus.CounterVec
	auditProblems  *prometheus.GaugeVec
	cancellations  prometheus.Counter
	registry       *prometheus.Registry
}

func New(cfg config.Config) *Metrics {
	environment := strings.TrimSpace(cfg.App.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": cfg.App.Name,
		"env":     environment,
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.workerRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "medici_worker_runs_total",
		Help:        "Worker tick executions by worker and result.",
		ConstLabels: constLabels,
	}, []string{"worker", "result"}) // success | failure | skipped

	m.workerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "medici_worker_tick_seconds",
		Help:        "Worker tick wall time.",
		Buckets:     []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		ConstLabels: constLabels,
	}, []string{"worker"})

	m.workerRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "medici_worker_restarts_total",
		Help:        "Automatic worker restarts after repeated unhealthy checks.",
		ConstLabels: constLabels,
	}, []string{"worker"})

	m.pushAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "medici_channel_push_attempts_total",
		Help:        "Downstream push attempts by type and result.",
		ConstLabels: constLabels,
	}, []string{"push_type", "result"})

	m.purchasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "medici_purchases_total",
		Help:        "Purchase executions by mode (live or dry_run).",
		ConstLabels: constLabels,
	}, []string{"mode"})

	m.auditProblems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "medici_audit_problems",
		Help:        "Problems found by the latest audit run, by type.",
		ConstLabels: constLabels,
	}, []string{"type"})

	m.cancellations = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "medici_cancellations_total",
		Help:        "Bookings cancelled by the lifecycle worker.",
		ConstLabels: constLabels,
	})

	m.registry.MustRegister(
		m.workerRuns,
		m.workerDuration,
		m.workerRestarts,
		m.pushAttempts,
		m.purchasesTotal,
		m.auditProblems,
		m.cancellations,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveTick(worker, result string, elapsed time.Duration) {
	m.workerRuns.WithLabelValues(worker, result).Inc()
	if result != "skipped" {
		m.workerDuration.WithLabelValues(worker).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) WorkerRestarted(worker string) {
	m.workerRestarts.WithLabelValues(worker).Inc()
}

func (m *Metrics) PushAttempt(pushType string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.pushAttempts.WithLabelValues(pushType, result).Inc()
}

func (m *Metrics) PurchaseExecuted(dryRun bool) {
	mode := "live"
	if dryRun {
		mode = "dry_run"
	}
	m.purchasesTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) SetAuditProblems(counts map[string]int) {
	m.auditProblems.Reset()
	for problemType, count := range counts {
		m.auditProblems.WithLabelValues(problemType).Set(float64(count))
	}
}

func (m *Metrics) CancellationExecuted() { m.cancellations.Inc() }

var Module = fx.Module("metrics",
	fx.Provide(New),
)

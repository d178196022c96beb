package reconcile

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal      *prometheus.CounterVec
	secretsTotal   *prometheus.CounterVec
	remoteOpsTotal *prometheus.CounterVec
	runDuration    prometheus.Histogram

	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics records reconciliation metrics. All methods are no-ops until
// InitMetrics has been called, so library use stays registration-free.
type Metrics struct{}

// NewMetrics creates a Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers all Prometheus metrics. Call once at startup
// when metrics are wanted.
func InitMetrics() {
	metricsOnce.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretsync_runs_total",
				Help: "Total number of reconciliation runs",
			},
			[]string{"result"},
		)

		secretsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretsync_secrets_total",
				Help: "Total number of per-secret reconciliation outcomes",
			},
			[]string{"outcome"},
		)

		remoteOpsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretsync_remote_ops_total",
				Help: "Total number of remote secret service operations",
			},
			[]string{"op", "status"},
		)

		runDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "secretsync_run_duration_seconds",
				Help:    "Duration of reconciliation runs in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120},
			},
		)

		metricsRegistered = true
	})
}

// RecordRun records the outcome and duration of a whole run.
func (m *Metrics) RecordRun(success bool, elapsed time.Duration) {
	if !metricsRegistered {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	runsTotal.WithLabelValues(result).Inc()
	runDuration.Observe(elapsed.Seconds())
}

// RecordSecret records a per-secret outcome: succeeded, failed or
// skipped.
func (m *Metrics) RecordSecret(outcome string) {
	if !metricsRegistered {
		return
	}
	secretsTotal.WithLabelValues(outcome).Inc()
}

// RecordRemoteOp records one remote call and whether it succeeded.
func (m *Metrics) RecordRemoteOp(op string, err error) {
	if !metricsRegistered {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	remoteOpsTotal.WithLabelValues(op, status).Inc()
}

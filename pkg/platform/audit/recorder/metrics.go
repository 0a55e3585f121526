package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit recording.
type Metrics struct {
	Recorded        *prometheus.CounterVec
	Rejected        prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics registers audit metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proposals_audit_entries_recorded_total",
			Help: "Total number of audit entries persisted, by action type",
		}, []string{"action_type"}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "proposals_audit_invalid_action_total",
			Help: "Total number of audit calls rejected for an unknown action type",
		}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "proposals_audit_persist_failures_total",
			Help: "Total number of audit entries that failed to persist",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "proposals_audit_persist_duration_seconds",
			Help:    "Latency of audit entry persistence",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the lifecycle authority.
type Metrics struct {
	ProposalsCreated   prometheus.Counter
	Transitions        *prometheus.CounterVec
	ContentUpdates     *prometheus.CounterVec
	OperationLatency   *prometheus.HistogramVec
	NotifyHandoffFails prometheus.Counter
}

// New creates and registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProposalsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "proposals_created_total",
			Help: "Total number of proposals created",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proposals_transitions_total",
			Help: "Transition attempts by edge and outcome",
		}, []string{"from", "to", "outcome"}),
		ContentUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proposals_content_updates_total",
			Help: "Section content update attempts by section and outcome",
		}, []string{"section", "outcome"}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proposals_operation_duration_seconds",
			Help:    "Latency of lifecycle operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		NotifyHandoffFails: f.NewCounter(prometheus.CounterOpts{
			Name: "proposals_notify_handoff_failures_total",
			Help: "Committed transitions whose notification hand-off failed",
		}),
	}
}

func (m *Metrics) IncrementProposalsCreated() {
	m.ProposalsCreated.Inc()
}

func (m *Metrics) ObserveTransition(from, to, outcome string) {
	m.Transitions.WithLabelValues(from, to, outcome).Inc()
}

func (m *Metrics) ObserveContentUpdate(section, outcome string) {
	m.ContentUpdates.WithLabelValues(section, outcome).Inc()
}

func (m *Metrics) ObserveLatency(operation string, d time.Duration) {
	m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) IncrementNotifyHandoffFailures() {
	m.NotifyHandoffFails.Inc()
}

package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the notification dispatcher.
type Metrics struct {
	Enqueued         prometheus.Counter
	Dropped          prometheus.Counter
	Created          prometheus.Counter
	AlreadyDelivered prometheus.Counter
	Retries          prometheus.Counter
	Failures         prometheus.Counter
	QueueDepth       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Enqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "proposals_notification_events_enqueued_total",
			Help: "Transition events accepted by the notification dispatcher",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "proposals_notification_events_dropped_total",
			Help: "Transition events refused because the queue was full or closed",
		}),
		Created: factory.NewCounter(prometheus.CounterOpts{
			Name: "proposals_notifications_created_total",
			Help: "Notification rows written",
		}),
		AlreadyDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "proposals_notifications_already_delivered_total",
			Help: "Notification inserts skipped because the row already existed",
		}),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "proposals_notification_retries_total",
			Help: "Fan-out attempts retried after a failure",
		}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "proposals_notification_failures_total",
			Help: "Transition events abandoned after exhausting retries",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proposals_notification_queue_depth",
			Help: "Transition events waiting for a dispatcher worker",
		}),
	}
}

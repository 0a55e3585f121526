package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementProposalsCreated()
	m.ObserveTransition("pending", "approved", "ok")
	m.ObserveTransition("pending", "approved", "conflict")
	m.ObserveTransition("pending", "approved", "conflict")
	m.ObserveContentUpdate("event_info", "forbidden_field")
	m.ObserveLatency("transition", 20*time.Millisecond)
	m.IncrementNotifyHandoffFailures()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProposalsCreated))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Transitions.WithLabelValues("pending", "approved", "conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ContentUpdates.WithLabelValues("event_info", "forbidden_field")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotifyHandoffFails))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "proposals_operation_duration_seconds")
}

func TestNewRegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

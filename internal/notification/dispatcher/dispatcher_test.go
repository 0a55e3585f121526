package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposals/internal/notification/fanout"
	proposalmodels "proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
)

type flakyDeliverer struct {
	mu        sync.Mutex
	failFirst int
	attempts  map[string]int
	delivered chan string
	block     chan struct{}
}

func newFlakyDeliverer(failFirst int) *flakyDeliverer {
	return &flakyDeliverer{
		failFirst: failFirst,
		attempts:  make(map[string]int),
		delivered: make(chan string, 64),
	}
}

func (f *flakyDeliverer) FanOut(ctx context.Context, event proposalmodels.TransitionEvent) (fanout.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return fanout.Result{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.attempts[event.Key()]++
	n := f.attempts[event.Key()]
	f.mu.Unlock()
	if n <= f.failFirst {
		return fanout.Result{}, dErrors.New(dErrors.CodeNotificationDelivery, "transient")
	}
	f.delivered <- event.Key()
	return fanout.Result{Recipients: 1, Created: 1}, nil
}

func (f *flakyDeliverer) attemptsFor(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[key]
}

func event(seq int64) proposalmodels.TransitionEvent {
	return proposalmodels.TransitionEvent{
		ProposalUUID: id.ProposalID(uuid.New()),
		From:         proposalmodels.StatusPending,
		To:           proposalmodels.StatusApproved,
		Seq:          seq,
		EventName:    "approved",
	}
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestDispatcher_RetriesUntilDelivered(t *testing.T) {
	deliverer := newFlakyDeliverer(2)
	metrics := NewMetrics(prometheus.NewRegistry())
	d := New(deliverer, WithWorkers(1), WithBackOff(fastBackOff), WithMetrics(metrics))
	d.Start(context.Background())

	ev := event(2)
	require.NoError(t, d.Notify(context.Background(), ev))

	select {
	case key := <-deliverer.delivered:
		assert.Equal(t, ev.Key(), key)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Equal(t, 3, deliverer.attemptsFor(ev.Key()))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Retries))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Created))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.Failures))
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	deliverer := newFlakyDeliverer(100)
	metrics := NewMetrics(prometheus.NewRegistry())
	d := New(deliverer, WithWorkers(1), WithBackOff(fastBackOff), WithMaxRetries(3), WithMetrics(metrics))
	d.Start(context.Background())

	ev := event(1)
	require.NoError(t, d.Notify(context.Background(), ev))
	require.NoError(t, d.Shutdown(context.Background()))

	assert.Equal(t, 4, deliverer.attemptsFor(ev.Key()))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Failures))
}

func TestDispatcher_FullQueueRefusesWithoutBlocking(t *testing.T) {
	deliverer := newFlakyDeliverer(0)
	deliverer.block = make(chan struct{})
	metrics := NewMetrics(prometheus.NewRegistry())
	d := New(deliverer, WithWorkers(1), WithQueueSize(1), WithMetrics(metrics))
	d.Start(context.Background())

	// One event occupies the worker, one fills the queue.
	require.NoError(t, d.Notify(context.Background(), event(1)))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Notify(context.Background(), event(2)))

	err := d.Notify(context.Background(), event(3))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotificationDelivery))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Dropped))

	close(deliverer.block)
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_NotifyAfterShutdown(t *testing.T) {
	d := New(newFlakyDeliverer(0))
	d.Start(context.Background())
	require.NoError(t, d.Shutdown(context.Background()))

	err := d.Notify(context.Background(), event(1))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotificationDelivery))
}

func TestDispatcher_CallerCancellationDoesNotAbortDelivery(t *testing.T) {
	deliverer := newFlakyDeliverer(0)
	d := New(deliverer, WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Notify(ctx, event(1)))
	cancel()

	d.Start(context.Background())
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Len(t, deliverer.delivered, 1)
}

func TestSynchronous(t *testing.T) {
	var calls atomic.Int32
	ok := deliverFunc(func(context.Context, proposalmodels.TransitionEvent) (fanout.Result, error) {
		calls.Add(1)
		return fanout.Result{}, nil
	})
	require.NoError(t, NewSynchronous(ok).Notify(context.Background(), event(1)))
	assert.Equal(t, int32(1), calls.Load())

	boom := errors.New("store down")
	failing := deliverFunc(func(context.Context, proposalmodels.TransitionEvent) (fanout.Result, error) {
		return fanout.Result{}, boom
	})
	assert.ErrorIs(t, NewSynchronous(failing).Notify(context.Background(), event(1)), boom)
}

type deliverFunc func(context.Context, proposalmodels.TransitionEvent) (fanout.Result, error)

func (f deliverFunc) FanOut(ctx context.Context, e proposalmodels.TransitionEvent) (fanout.Result, error) {
	return f(ctx, e)
}

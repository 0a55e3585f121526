// Package dispatcher delivers transition notifications off the request path.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"proposals/internal/notification/fanout"
	proposalmodels "proposals/internal/proposal/models"
	dErrors "proposals/pkg/domain-errors"
)

const (
	defaultWorkers    = 4
	defaultQueueSize  = 1024
	defaultMaxRetries = 5
)

// Deliverer performs one idempotent fan-out attempt.
type Deliverer interface {
	FanOut(ctx context.Context, event proposalmodels.TransitionEvent) (fanout.Result, error)
}

type job struct {
	ctx   context.Context
	event proposalmodels.TransitionEvent
}

// Dispatcher is a bounded worker pool. Notify never blocks: when the queue is
// full the event is refused and the caller logs it. Each event is retried with
// exponential backoff; idempotent inserts make retries safe.
type Dispatcher struct {
	deliverer  Deliverer
	queue      chan job
	workers    int
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
	metrics    *Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan job, n)
		}
	}
}

func WithMaxRetries(n uint64) Option {
	return func(d *Dispatcher) {
		d.maxRetries = n
	}
}

// WithBackOff replaces the per-event backoff policy.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(d *Dispatcher) {
		d.newBackOff = factory
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func New(deliverer Deliverer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		deliverer:  deliverer,
		queue:      make(chan job, defaultQueueSize),
		workers:    defaultWorkers,
		maxRetries: defaultMaxRetries,
		newBackOff: defaultBackOff,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = time.Minute
	return b
}

// Start launches the workers. They exit when Shutdown drains the queue or
// ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(ctx)
		}()
	}
}

// Notify enqueues event for delivery.
func (d *Dispatcher) Notify(ctx context.Context, event proposalmodels.TransitionEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.incDropped()
		return dErrors.New(dErrors.CodeNotificationDelivery, "notification dispatcher is shut down")
	}

	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
		if d.metrics != nil {
			d.metrics.Enqueued.Inc()
			d.metrics.QueueDepth.Set(float64(len(d.queue)))
		}
		return nil
	default:
		d.incDropped()
		return dErrors.New(dErrors.CodeNotificationDelivery, "notification queue is full")
	}
}

// Shutdown stops accepting events and waits for queued ones to finish, or
// for ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return dErrors.New(dErrors.CodeTimeout, "notification dispatcher did not drain before deadline")
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.queue:
			if !ok {
				return
			}
			if d.metrics != nil {
				d.metrics.QueueDepth.Set(float64(len(d.queue)))
			}
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) deliver(runCtx context.Context, j job) {
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	policy := backoff.WithContext(backoff.WithMaxRetries(d.newBackOff(), d.maxRetries), ctx)
	var result fanout.Result
	err := backoff.RetryNotify(func() error {
		var err error
		result, err = d.deliverer.FanOut(ctx, j.event)
		return err
	}, policy, func(err error, wait time.Duration) {
		if d.metrics != nil {
			d.metrics.Retries.Inc()
		}
		d.logger.WarnContext(ctx, "notification fan-out failed, retrying",
			"proposal_id", j.event.ProposalUUID.String(),
			"transition", j.event.Key(),
			"retry_in", wait,
			"error", err,
		)
	})
	if err != nil {
		if d.metrics != nil {
			d.metrics.Failures.Inc()
		}
		d.logger.ErrorContext(ctx, "notification fan-out abandoned",
			"proposal_id", j.event.ProposalUUID.String(),
			"transition", j.event.Key(),
			"error", err,
		)
		return
	}
	if d.metrics != nil {
		d.metrics.Created.Add(float64(result.Created))
		d.metrics.AlreadyDelivered.Add(float64(result.AlreadyDelivered))
	}
}

func (d *Dispatcher) incDropped() {
	if d.metrics != nil {
		d.metrics.Dropped.Inc()
	}
}

package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	id "proposals/pkg/domain"
	"proposals/pkg/platform/circuit"
)

const reviewersKey = "proposals:directory:reviewers"

// Source is any reviewer lookup that Cached can front.
type Source interface {
	ListReviewers(ctx context.Context) ([]id.UserID, error)
}

// Cached fronts a Source with a Redis entry that expires after ttl. A Redis
// outage degrades to reading the source directly; once the breaker opens,
// Redis is only retried once per cooldown.
type Cached struct {
	source  Source
	client  redis.Cmdable
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type CachedOption func(*Cached)

func WithLogger(logger *slog.Logger) CachedOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) CachedOption {
	return func(c *Cached) {
		c.breaker = b
	}
}

func NewCached(source Source, client redis.Cmdable, ttl time.Duration, opts ...CachedOption) *Cached {
	c := &Cached{
		source:  source,
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("reviewer-cache", circuit.WithFailureThreshold(3)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cached) ListReviewers(ctx context.Context) ([]id.UserID, error) {
	if !c.breaker.Allow() {
		return c.source.ListReviewers(ctx)
	}

	raw, err := c.client.Get(ctx, reviewersKey).Result()
	switch {
	case err == nil:
		c.recordSuccess(ctx)
		reviewers, decodeErr := decodeReviewers(raw)
		if decodeErr == nil {
			return reviewers, nil
		}
		c.logger.WarnContext(ctx, "discarding malformed reviewer cache entry", "error", decodeErr)
	case errors.Is(err, redis.Nil):
		c.recordSuccess(ctx)
	default:
		c.recordFailure(ctx, err)
		return c.source.ListReviewers(ctx)
	}

	reviewers, err := c.source.ListReviewers(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, reviewersKey, encodeReviewers(reviewers), c.ttl).Err(); err != nil {
		c.recordFailure(ctx, err)
	}
	return reviewers, nil
}

func (c *Cached) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "reviewer cache recovered", "breaker", c.breaker.Name())
	}
}

func (c *Cached) recordFailure(ctx context.Context, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "reviewer cache disabled after repeated failures",
			"breaker", c.breaker.Name(),
			"error", err,
		)
		return
	}
	c.logger.DebugContext(ctx, "reviewer cache unavailable", "error", err)
}

// Invalidate drops the cached list so the next lookup reads the source.
func (c *Cached) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, reviewersKey).Err(); err != nil {
		return fmt.Errorf("invalidate reviewer cache: %w", err)
	}
	return nil
}

func encodeReviewers(reviewers []id.UserID) string {
	parts := make([]string, len(reviewers))
	for i, r := range reviewers {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

func decodeReviewers(raw string) ([]id.UserID, error) {
	if raw == "" {
		return []id.UserID{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]id.UserID, 0, len(parts))
	for _, p := range parts {
		u, err := id.ParseUserID(p)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

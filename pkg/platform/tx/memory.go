package tx

import (
	"context"
	"sync"
	"time"
)

// numShards spreads per-key locks so unrelated proposals do not contend.
const numShards = 128

// MemoryRunner serializes transactions per lock key using sharded mutexes and
// undoes journalled writes when fn fails. In-memory stores register their
// compensations through OnRollback.
type MemoryRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewMemoryRunner builds a runner. A zero timeout means DefaultTimeout.
func NewMemoryRunner(timeout time.Duration) *MemoryRunner {
	return &MemoryRunner{timeout: timeout}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cancelled(ctx); err != nil {
		return err
	}
	if _, nested := journalFrom(ctx); nested {
		return fn(ctx)
	}

	ctx, cancel := boundedContext(ctx, r.timeout)
	defer cancel()

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := cancelled(ctx); err != nil {
		return err
	}

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

func (r *MemoryRunner) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(lockKeyCtx).(string); ok && key != "" {
		return int(hashString(key) % numShards)
	}
	return 0
}

type lockKey struct{}

var lockKeyCtx = lockKey{}

// WithLockKey names the entity a transaction is about to touch so the memory
// runner can pick a shard. SQL transactions ignore it.
func WithLockKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, lockKeyCtx, key)
}

type journal struct {
	mu    sync.Mutex
	undos []func()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i]()
	}
	j.undos = nil
}

type journalCtxKey struct{}

var journalKey = journalCtxKey{}

func journalFrom(ctx context.Context) (*journal, bool) {
	j, ok := ctx.Value(journalKey).(*journal)
	return j, ok
}

// OnRollback registers undo to run if the memory transaction in ctx fails.
// Outside a memory transaction it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	j, ok := journalFrom(ctx)
	if !ok {
		return
	}
	j.mu.Lock()
	j.undos = append(j.undos, undo)
	j.mu.Unlock()
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

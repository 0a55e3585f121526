// Package recorder appends audit entries with fail-closed semantics.
//
// Record validates the action type against the closed enumeration before any
// storage call, then writes synchronously through the store. If the write
// fails the error is returned and the calling operation must fail with it;
// inside a transaction that means rolling back the mutation being audited.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
	"proposals/pkg/platform/audit"
	"proposals/pkg/platform/sentinel"
	"proposals/pkg/requestcontext"
)

// Record describes one mutation to audit.
type Record struct {
	ActorID   id.UserID
	Action    audit.ActionType
	TableName string
	RecordID  string
	Detail    any
}

// Recorder validates and persists audit entries.
type Recorder struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New creates a recorder over store.
func New(store audit.Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one immutable entry and returns it.
func (r *Recorder) Record(ctx context.Context, rec Record) (*audit.Entry, error) {
	start := time.Now()

	if !rec.Action.IsValid() {
		r.incRejected()
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "audit call site used unknown action type",
				"action_type", string(rec.Action),
				"table", rec.TableName,
			)
		}
		return nil, dErrors.New(dErrors.CodeInvalidActionType, "unknown audit action type: "+string(rec.Action))
	}
	if rec.ActorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit entry requires actor")
	}
	if rec.TableName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit entry requires table name")
	}

	detail, err := marshalDetail(rec.Detail)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode audit detail")
	}

	entry := audit.Entry{
		ID:        id.AuditEntryID(uuid.New()),
		ActorID:   rec.ActorID,
		Action:    rec.Action,
		TableName: rec.TableName,
		RecordID:  rec.RecordID,
		Detail:    detail,
		RequestID: requestcontext.RequestID(ctx),
		CreatedAt: requestcontext.Now(ctx),
	}

	if err := r.store.Append(ctx, entry); err != nil {
		r.incPersistFailures()
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"action_type", string(rec.Action),
				"table", rec.TableName,
				"record_id", rec.RecordID,
				"actor_id", rec.ActorID.String(),
				"error", err,
			)
		}
		if dErrors.HasCode(err, dErrors.CodeInvalidActionType) {
			return nil, err
		}
		if isCheckViolation(err) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidActionType, "audit entry refused by storage constraint")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit persistence failed")
	}

	r.observe(rec.Action, time.Since(start))
	return &entry, nil
}

// History lists entries recorded against one row, oldest first.
func (r *Recorder) History(ctx context.Context, tableName, recordID string) ([]audit.Entry, error) {
	entries, err := r.store.ListByRecord(ctx, tableName, recordID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit entries")
	}
	return entries, nil
}

func marshalDetail(detail any) (json.RawMessage, error) {
	switch d := detail.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return d, nil
	default:
		return json.Marshal(d)
	}
}

func isCheckViolation(err error) bool {
	return errors.Is(err, sentinel.ErrCheckViolation)
}

func (r *Recorder) incRejected() {
	if r.metrics != nil {
		r.metrics.Rejected.Inc()
	}
}

func (r *Recorder) incPersistFailures() {
	if r.metrics != nil {
		r.metrics.PersistFailures.Inc()
	}
}

func (r *Recorder) observe(action audit.ActionType, d time.Duration) {
	if r.metrics != nil {
		r.metrics.Recorded.WithLabelValues(string(action)).Inc()
		r.metrics.PersistDuration.Observe(d.Seconds())
	}
}

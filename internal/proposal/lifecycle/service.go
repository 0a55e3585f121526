package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"proposals/internal/platform/metrics"
	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
	"proposals/pkg/platform/audit"
	"proposals/pkg/platform/audit/recorder"
	"proposals/pkg/platform/sentinel"
	"proposals/pkg/platform/tx"
	"proposals/pkg/requestcontext"
)

const tracerName = "proposals/internal/proposal/lifecycle"

// TransitionRequest asks the authority to move a proposal from one status to
// another. ReviewerID defaults to the caller on reviewer transitions.
type TransitionRequest struct {
	ProposalID id.ProposalID
	From       models.Status
	To         models.Status
	Caller     id.Caller
	ReviewerID *id.UserID
}

// Service is the lifecycle authority. Every write runs as one transaction:
// read under lock, consult the guard, write, audit. Notifications are handed
// off only after commit and never affect the caller's result.
type Service struct {
	proposals ProposalStore
	auditor   AuditRecorder
	tx        tx.Runner
	guard     Guard
	notifier  Notifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs the authority.
func New(proposals ProposalStore, auditor AuditRecorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		proposals: proposals,
		auditor:   auditor,
		tx:        runner,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new draft owned by the caller.
func (s *Service) Create(ctx context.Context, caller id.Caller) (*models.Proposal, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.Create")
	defer span.End()

	if caller.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}
	if caller.Role != id.RoleStudent {
		return nil, dErrors.New(dErrors.CodeForbidden, "only students may open proposals")
	}

	now := requestcontext.Now(ctx)
	p, err := models.NewDraft(id.ProposalID(uuid.New()), caller.ID, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(tx.WithLockKey(ctx, p.UUID.String()), func(ctx context.Context) error {
		if err := s.proposals.Create(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create proposal")
		}
		_, err := s.auditor.Record(ctx, recorder.Record{
			ActorID:   caller.ID,
			Action:    audit.ActionCreate,
			TableName: models.TableName,
			RecordID:  p.UUID.String(),
			Detail:    map[string]any{"status": p.Status},
		})
		return err
	})
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementProposalsCreated()
	}
	s.logger.InfoContext(ctx, "proposal created",
		"proposal_id", p.UUID.String(),
		"owner_id", caller.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return p, nil
}

// Get returns a proposal the caller may see.
func (s *Service) Get(ctx context.Context, proposalID id.ProposalID, caller id.Caller) (*models.Proposal, error) {
	p, err := s.load(ctx, s.proposals.FindByUUID, proposalID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckRead(caller, p); err != nil {
		return nil, err
	}
	return p, nil
}

// History returns the proposal's audit trail, oldest first.
func (s *Service) History(ctx context.Context, proposalID id.ProposalID, caller id.Caller) ([]audit.Entry, error) {
	if _, err := s.Get(ctx, proposalID, caller); err != nil {
		return nil, err
	}
	return s.auditor.History(ctx, models.TableName, proposalID.String())
}

// ApplyContentUpdate writes section fields. It never touches status: a payload
// naming a protected field is refused before anything is read or written.
func (s *Service) ApplyContentUpdate(ctx context.Context, proposalID id.ProposalID, section models.Section, fields map[string]any, caller id.Caller) (*models.Proposal, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "lifecycle.ApplyContentUpdate", trace.WithAttributes(
		attribute.String("proposal.id", proposalID.String()),
		attribute.String("proposal.section", string(section)),
	))
	defer span.End()

	updated, err := s.applyContentUpdate(ctx, proposalID, section, fields, caller)

	if s.metrics != nil {
		s.metrics.ObserveContentUpdate(string(section), outcome(err))
		s.metrics.ObserveLatency("content_update", time.Since(start))
	}
	if err != nil {
		endSpan(span, err)
		s.logRejection(ctx, "content update refused", err,
			"proposal_id", proposalID.String(),
			"section", string(section),
			"caller_id", caller.ID.String(),
		)
		return nil, err
	}
	return updated, nil
}

func (s *Service) applyContentUpdate(ctx context.Context, proposalID id.ProposalID, section models.Section, fields map[string]any, caller id.Caller) (*models.Proposal, error) {
	if err := s.guard.CheckContentFields(section, fields); err != nil {
		return nil, err
	}

	var updated *models.Proposal
	err := s.tx.RunInTx(tx.WithLockKey(ctx, proposalID.String()), func(ctx context.Context) error {
		current, err := s.load(ctx, s.proposals.FindByUUID, proposalID)
		if err != nil {
			return err
		}
		if err := s.guard.CheckContentAccess(caller, current); err != nil {
			return err
		}

		updated, err = s.proposals.MergeSection(ctx, proposalID, section, fields, requestcontext.Now(ctx))
		if err != nil {
			return translateStoreError(err, "failed to update proposal section")
		}

		_, err = s.auditor.Record(ctx, recorder.Record{
			ActorID:   caller.ID,
			Action:    audit.ActionUpdate,
			TableName: models.TableName,
			RecordID:  proposalID.String(),
			Detail: map[string]any{
				"section": section,
				"fields":  fieldNames(fields),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyTransition moves a proposal along one edge of the state machine.
func (s *Service) ApplyTransition(ctx context.Context, req TransitionRequest) (*models.Proposal, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "lifecycle.ApplyTransition", trace.WithAttributes(
		attribute.String("proposal.id", req.ProposalID.String()),
		attribute.String("transition.from", string(req.From)),
		attribute.String("transition.to", string(req.To)),
	))
	defer span.End()

	updated, event, err := s.applyTransition(ctx, req)

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(req.From), string(req.To), outcome(err))
		s.metrics.ObserveLatency("transition", time.Since(start))
	}
	if err != nil {
		endSpan(span, err)
		s.logRejection(ctx, "transition refused", err,
			"proposal_id", req.ProposalID.String(),
			"from", string(req.From),
			"to", string(req.To),
			"caller_id", req.Caller.ID.String(),
			"caller_role", string(req.Caller.Role),
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "proposal transitioned",
		"proposal_id", req.ProposalID.String(),
		"from", string(req.From),
		"to", string(req.To),
		"seq", event.Seq,
		"actor_id", req.Caller.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notify(ctx, event)
	return updated, nil
}

func (s *Service) applyTransition(ctx context.Context, req TransitionRequest) (*models.Proposal, models.TransitionEvent, error) {
	// Illegal pairs fail before any storage access.
	if _, err := LookupTransition(req.From, req.To); err != nil {
		return nil, models.TransitionEvent{}, err
	}

	var (
		updated *models.Proposal
		event   models.TransitionEvent
	)
	err := s.tx.RunInTx(tx.WithLockKey(ctx, req.ProposalID.String()), func(ctx context.Context) error {
		current, err := s.load(ctx, s.proposals.FindByUUIDForUpdate, req.ProposalID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		t, err := s.guard.CheckTransition(req.Caller, current, req.From, req.To, now)
		if err != nil {
			return err
		}

		change := StatusChange{
			ProposalID: req.ProposalID,
			From:       req.From,
			To:         req.To,
			UpdatedAt:  now,
		}
		if t.Actor == ActorReviewer {
			reviewer, err := resolveReviewer(req)
			if err != nil {
				return err
			}
			change.ReviewedBy = &reviewer
			change.ReviewedAt = &now
		}

		updated, err = s.proposals.CompareAndSwapStatus(ctx, change)
		if err != nil {
			return translateStoreError(err, "failed to update proposal status")
		}

		_, err = s.auditor.Record(ctx, recorder.Record{
			ActorID:   req.Caller.ID,
			Action:    t.Action,
			TableName: models.TableName,
			RecordID:  req.ProposalID.String(),
			Detail: map[string]any{
				"transition": t.Name,
				"from":       req.From,
				"to":         req.To,
				"seq":        updated.TransitionSeq,
			},
		})
		if err != nil {
			return err
		}

		event = models.TransitionEvent{
			ProposalID:   updated.ID,
			ProposalUUID: updated.UUID,
			OwnerID:      updated.OwnerID,
			From:         req.From,
			To:           req.To,
			Seq:          updated.TransitionSeq,
			ActorID:      req.Caller.ID,
			EventName:    t.Name,
			OccurredAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, models.TransitionEvent{}, err
	}
	return updated, event, nil
}

// resolveReviewer decides who is recorded as reviewer. Admins may attribute a
// review to another reviewer; everyone else reviews as themselves.
func resolveReviewer(req TransitionRequest) (id.UserID, error) {
	if req.ReviewerID == nil || req.ReviewerID.IsNil() || *req.ReviewerID == req.Caller.ID {
		return req.Caller.ID, nil
	}
	if req.Caller.Role != id.RoleAdmin {
		return id.UserID{}, dErrors.New(dErrors.CodeForbidden, "only admins may record a review on behalf of another reviewer")
	}
	return *req.ReviewerID, nil
}

// notify hands the committed event to the notifier. Failures are logged and
// counted, never returned: the transition has already committed.
func (s *Service) notify(ctx context.Context, event models.TransitionEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementNotifyHandoffFailures()
		}
		s.logger.ErrorContext(ctx, "notification hand-off failed",
			"proposal_id", event.ProposalUUID.String(),
			"transition", event.Key(),
			"error", err,
		)
	}
}

func (s *Service) load(ctx context.Context, find func(context.Context, id.ProposalID) (*models.Proposal, error), proposalID id.ProposalID) (*models.Proposal, error) {
	if proposalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "proposal ID required")
	}
	p, err := find(ctx, proposalID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load proposal")
	}
	return p, nil
}

func (s *Service) logRejection(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err.Error(), "code", string(dErrors.CodeOf(err)),
		"request_id", requestcontext.RequestID(ctx))
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.HasCode(err, dErrors.CodeInvalidActionType) {
		s.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	s.logger.WarnContext(ctx, msg, attrs...)
}

func translateStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "proposal not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "proposal status changed concurrently")
	default:
		if _, ok := dErrors.As(err); ok {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}

func endSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Package fanout turns a committed proposal transition into one notification
// per interested recipient.
package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"proposals/internal/notification/models"
	"proposals/internal/proposal/lifecycle"
	proposalmodels "proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
	platformstrings "proposals/pkg/platform/strings"
	"proposals/pkg/requestcontext"
)

// Store is the insert-if-absent port over the notifications table.
type Store interface {
	InsertIfAbsent(ctx context.Context, n models.Notification) (bool, error)
}

// ReviewerDirectory lists everyone who should hear about new submissions.
type ReviewerDirectory interface {
	ListReviewers(ctx context.Context) ([]id.UserID, error)
}

type audience int

const (
	audienceNone audience = iota
	audienceOwner
	audienceReviewers
)

type rule struct {
	audience audience
	kind     models.Type
	template string
}

// rules is keyed by transition event name. The template receives the
// proposal UUID.
var rules = map[string]rule{
	lifecycle.EventSubmitted: {
		audience: audienceReviewers,
		kind:     models.TypeSubmitted,
		template: "Proposal %s has been submitted for review.",
	},
	lifecycle.EventApproved: {
		audience: audienceOwner,
		kind:     models.TypeStatusChange,
		template: "Your proposal %s has been approved.",
	},
	lifecycle.EventRejected: {
		audience: audienceOwner,
		kind:     models.TypeStatusChange,
		template: "Your proposal %s has been rejected.",
	},
	lifecycle.EventReportingOpen: {
		audience: audienceReviewers,
		kind:     models.TypeStatusChange,
		template: "A report has been submitted for proposal %s.",
	},
	lifecycle.EventReturnedToDraft: {
		audience: audienceNone,
	},
}

// Result counts what a fan-out did. AlreadyDelivered rows were present from
// an earlier attempt of the same transition.
type Result struct {
	Recipients       int
	Created          int
	AlreadyDelivered int
}

// FanOut computes recipients and inserts their notifications idempotently.
type FanOut struct {
	store     Store
	directory ReviewerDirectory
	logger    *slog.Logger
}

type Option func(*FanOut)

func WithLogger(logger *slog.Logger) Option {
	return func(f *FanOut) {
		f.logger = logger
	}
}

func New(store Store, directory ReviewerDirectory, opts ...Option) *FanOut {
	f := &FanOut{
		store:     store,
		directory: directory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FanOut delivers event to its audience. It may be called any number of times
// for the same event: rows already present are counted, not duplicated. On
// error some recipients may have been written; a retry completes the rest.
func (f *FanOut) FanOut(ctx context.Context, event proposalmodels.TransitionEvent) (Result, error) {
	r, ok := rules[event.EventName]
	if !ok {
		return Result{}, dErrors.New(dErrors.CodeNotificationDelivery, "no notification rule for event "+event.EventName)
	}

	recipients, err := f.recipients(ctx, r.audience, event)
	if err != nil {
		return Result{}, err
	}

	result := Result{Recipients: len(recipients)}
	message := fmt.Sprintf(r.template, event.ProposalUUID)
	key := event.Key()
	now := requestcontext.Now(ctx)
	for _, recipient := range recipients {
		n := models.Notification{
			ID:                  id.NotificationID(uuid.New()),
			RecipientID:         recipient,
			Type:                r.kind,
			Message:             message,
			RelatedProposalID:   event.ProposalID,
			RelatedProposalUUID: event.ProposalUUID,
			TransitionKey:       key,
			CreatedAt:           now,
		}
		if err := n.Validate(); err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeNotificationDelivery, "invalid notification")
		}
		inserted, err := f.store.InsertIfAbsent(ctx, n)
		if err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeNotificationDelivery, "failed to store notification")
		}
		if inserted {
			result.Created++
		} else {
			result.AlreadyDelivered++
		}
	}

	f.logger.DebugContext(ctx, "notifications fanned out",
		"proposal_id", event.ProposalUUID.String(),
		"transition", key,
		"recipients", result.Recipients,
		"created", result.Created,
		"already_delivered", result.AlreadyDelivered,
	)
	return result, nil
}

func (f *FanOut) recipients(ctx context.Context, a audience, event proposalmodels.TransitionEvent) ([]id.UserID, error) {
	switch a {
	case audienceOwner:
		return []id.UserID{event.OwnerID}, nil
	case audienceReviewers:
		reviewers, err := f.directory.ListReviewers(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeNotificationDelivery, "failed to list reviewers")
		}
		return platformstrings.Dedupe(reviewers, id.UserID.IsNil), nil
	default:
		return nil, nil
	}
}

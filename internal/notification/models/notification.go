package models

import (
	"time"

	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
)

// Type classifies a notification.
type Type string

const (
	TypeStatusChange Type = "proposal_status_change"
	TypeSubmitted    Type = "proposal_submitted"
)

func (t Type) IsValid() bool {
	return t == TypeStatusChange || t == TypeSubmitted
}

// Notification is one message to one recipient about one transition.
//
// (RelatedProposalID, Type, RecipientID, TransitionKey) is unique: replaying
// the same transition never produces a second row.
type Notification struct {
	ID                  id.NotificationID `json:"id"`
	RecipientID         id.UserID         `json:"recipient_id"`
	Type                Type              `json:"notification_type"`
	Message             string            `json:"message"`
	IsRead              bool              `json:"is_read"`
	RelatedProposalID   int64             `json:"-"`
	RelatedProposalUUID id.ProposalID     `json:"related_proposal_id"`
	TransitionKey       string            `json:"transition_key"`
	CreatedAt           time.Time         `json:"created_at"`
}

// DedupKey is the uniqueness key as a comparable value.
type DedupKey struct {
	ProposalID    int64
	Type          Type
	RecipientID   id.UserID
	TransitionKey string
}

func (n Notification) DedupKey() DedupKey {
	return DedupKey{
		ProposalID:    n.RelatedProposalID,
		Type:          n.Type,
		RecipientID:   n.RecipientID,
		TransitionKey: n.TransitionKey,
	}
}

// Validate checks the fields the schema requires.
func (n Notification) Validate() error {
	if n.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "notification ID required")
	}
	if n.RecipientID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "recipient required")
	}
	if !n.Type.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown notification type: "+string(n.Type))
	}
	if n.TransitionKey == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "transition key required")
	}
	return nil
}

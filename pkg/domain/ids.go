// Package domain holds identifier and role value types shared across modules.
// IDs are distinct named UUID types so a proposal ID can never be passed where
// a user ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "proposals/pkg/domain-errors"
)

type (
	UserID         uuid.UUID
	ProposalID     uuid.UUID
	NotificationID uuid.UUID
	AuditEntryID   uuid.UUID
)

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id ProposalID) String() string     { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string   { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ProposalID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParseProposalID(s string) (ProposalID, error) {
	u, err := parseUUID(s, "proposal ID")
	return ProposalID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification ID")
	return NotificationID(u), err
}

// parseUUID is the single trust-boundary parser for all ID types.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}

// Text marshalling keeps IDs as canonical strings in JSON.

func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id ProposalID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id AuditEntryID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProposalID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *NotificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditEntryID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

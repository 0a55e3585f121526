package models

import (
	"fmt"
	"time"

	id "proposals/pkg/domain"
)

// TransitionEvent describes a committed status change. It is handed to the
// notifier after the transaction commits.
type TransitionEvent struct {
	ProposalID   int64
	ProposalUUID id.ProposalID
	OwnerID      id.UserID
	From         Status
	To           Status
	Seq          int64
	ActorID      id.UserID
	EventName    string
	OccurredAt   time.Time
}

// Key identifies this transition occurrence. Retries of the same event share
// a key; a later pass through the same edge gets a new one.
func (e TransitionEvent) Key() string {
	return fmt.Sprintf("%s->%s#%d", e.From, e.To, e.Seq)
}

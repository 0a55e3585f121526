package audit

import (
	"context"
	"encoding/json"
	"time"

	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
)

// ActionType is the closed vocabulary of audited actions. The audit table
// carries a CHECK constraint with the same values; ParseActionType enforces
// it before any write.
type ActionType string

const (
	ActionCreate  ActionType = "create"
	ActionUpdate  ActionType = "update"
	ActionDelete  ActionType = "delete"
	ActionApprove ActionType = "approve"
	ActionReject  ActionType = "reject"
	ActionLogin   ActionType = "login"
	ActionLogout  ActionType = "logout"
	ActionView    ActionType = "view"
	ActionExport  ActionType = "export"
)

var validActionTypes = map[ActionType]bool{
	ActionCreate:  true,
	ActionUpdate:  true,
	ActionDelete:  true,
	ActionApprove: true,
	ActionReject:  true,
	ActionLogin:   true,
	ActionLogout:  true,
	ActionView:    true,
	ActionExport:  true,
}

// ActionTypes lists every accepted action type.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionReject,
		ActionLogin, ActionLogout, ActionView, ActionExport,
	}
}

// IsValid reports whether a is a member of the closed enumeration.
func (a ActionType) IsValid() bool {
	return validActionTypes[a]
}

// ParseActionType constructs an ActionType from untrusted input.
func ParseActionType(s string) (ActionType, error) {
	a := ActionType(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidActionType, "unknown audit action type: "+s)
	}
	return a, nil
}

// Entry is one immutable audit row.
type Entry struct {
	ID        id.AuditEntryID
	ActorID   id.UserID
	Action    ActionType
	TableName string
	RecordID  string
	Detail    json.RawMessage
	RequestID string
	CreatedAt time.Time
}

// Store persists audit entries. Append must join the transaction carried in
// ctx when one is present. There is no update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByRecord(ctx context.Context, tableName, recordID string) ([]Entry, error)
}

package models

import (
	"time"

	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
)

// TableName is the audit target for proposal mutations.
const TableName = "proposals"

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusReporting Status = "reporting"
)

var validStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusPending:   true,
	StatusApproved:  true,
	StatusRejected:  true,
	StatusReporting: true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown status: "+s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

// Statuses lists every lifecycle state.
func Statuses() []Status {
	return []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusReporting}
}

// Content is one section's field bag. A nil Content means the section has
// never been written.
type Content map[string]any

// Proposal is the aggregate owned by the lifecycle authority.
//
// Invariants:
//   - Status changes only through a transition, never a content update
//   - ReviewedBy/ReviewedAt are set only by reviewer transitions
//   - TransitionSeq increases by one per accepted transition
type Proposal struct {
	ID            int64               `json:"-"`
	UUID          id.ProposalID       `json:"id"`
	OwnerID       id.UserID           `json:"owner_id"`
	Status        Status              `json:"status"`
	Sections      map[Section]Content `json:"sections"`
	TransitionSeq int64               `json:"transition_seq"`
	ReviewedBy    *id.UserID          `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time          `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewDraft constructs a proposal in the only initial state.
func NewDraft(uuid id.ProposalID, owner id.UserID, now time.Time) (*Proposal, error) {
	if uuid.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "proposal ID required")
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "proposal owner required")
	}
	return &Proposal{
		UUID:      uuid,
		OwnerID:   owner,
		Status:    StatusDraft,
		Sections:  map[Section]Content{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsOwnedBy reports whether user owns the proposal.
func (p *Proposal) IsOwnedBy(user id.UserID) bool {
	return p.OwnerID == user
}

// Clone returns a deep copy so stores never hand out shared maps.
func (p *Proposal) Clone() *Proposal {
	cp := *p
	cp.Sections = make(map[Section]Content, len(p.Sections))
	for sec, content := range p.Sections {
		cp.Sections[sec] = content.clone()
	}
	if p.ReviewedBy != nil {
		rb := *p.ReviewedBy
		cp.ReviewedBy = &rb
	}
	if p.ReviewedAt != nil {
		ra := *p.ReviewedAt
		cp.ReviewedAt = &ra
	}
	return &cp
}

func (c Content) clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge returns a copy of c with fields overlaid.
func (c Content) Merge(fields map[string]any) Content {
	out := c.clone()
	if out == nil {
		out = make(Content, len(fields))
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// EventEndsAt returns the moment the proposed event is over, read from the
// event section's end_date. A calendar date ends at the following midnight
// UTC; an RFC 3339 timestamp ends at that instant. ok is false when the field
// is missing or unparseable.
func (p *Proposal) EventEndsAt() (time.Time, bool) {
	raw, _ := p.Sections[SectionEvent]["end_date"].(string)
	if raw == "" {
		return time.Time{}, false
	}
	if day, err := time.Parse(time.DateOnly, raw); err == nil {
		return day.AddDate(0, 0, 1), true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

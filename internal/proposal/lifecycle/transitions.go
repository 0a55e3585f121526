package lifecycle

import (
	"sort"

	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
	"proposals/pkg/platform/audit"
)

// Actor is the party a transition entry requires.
type Actor string

const (
	// ActorOwner is the student who owns the proposal.
	ActorOwner Actor = "owner"
	// ActorReviewer is any admin or reviewer.
	ActorReviewer Actor = "reviewer"
)

// Transition is one legal edge of the proposal state machine.
type Transition struct {
	Name   string
	From   models.Status
	To     models.Status
	Actor  Actor
	Action audit.ActionType
	// RequiresEventEnded holds the edge until the proposed event is over.
	RequiresEventEnded bool
}

// Event names, shared with the notification templates.
const (
	EventSubmitted       = "submitted"
	EventApproved        = "approved"
	EventRejected        = "rejected"
	EventReportingOpen   = "reporting_started"
	EventReturnedToDraft = "returned_to_draft"
)

type edge struct {
	from models.Status
	to   models.Status
}

// transitionTable is the complete set of legal transitions. Anything absent
// is illegal for every role.
var transitionTable = map[edge]Transition{
	{models.StatusDraft, models.StatusPending}: {
		Name: EventSubmitted, From: models.StatusDraft, To: models.StatusPending,
		Actor: ActorOwner, Action: audit.ActionUpdate,
	},
	{models.StatusPending, models.StatusApproved}: {
		Name: EventApproved, From: models.StatusPending, To: models.StatusApproved,
		Actor: ActorReviewer, Action: audit.ActionApprove,
	},
	{models.StatusPending, models.StatusRejected}: {
		Name: EventRejected, From: models.StatusPending, To: models.StatusRejected,
		Actor: ActorReviewer, Action: audit.ActionReject,
	},
	{models.StatusApproved, models.StatusReporting}: {
		Name: EventReportingOpen, From: models.StatusApproved, To: models.StatusReporting,
		Actor: ActorOwner, Action: audit.ActionUpdate, RequiresEventEnded: true,
	},
	{models.StatusRejected, models.StatusDraft}: {
		Name: EventReturnedToDraft, From: models.StatusRejected, To: models.StatusDraft,
		Actor: ActorOwner, Action: audit.ActionUpdate,
	},
}

// LookupTransition returns the table entry for (from, to).
func LookupTransition(from, to models.Status) (Transition, error) {
	t, ok := transitionTable[edge{from, to}]
	if !ok {
		return Transition{}, dErrors.New(dErrors.CodeIllegalTransition,
			"illegal transition: "+string(from)+" -> "+string(to))
	}
	return t, nil
}

// Transitions returns every legal transition ordered by (from, to).
func Transitions() []Transition {
	out := make([]Transition, 0, len(transitionTable))
	for _, t := range transitionTable {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// AllowedFrom lists the targets reachable from status.
func AllowedFrom(status models.Status) []models.Status {
	var out []models.Status
	for _, t := range Transitions() {
		if t.From == status {
			out = append(out, t.To)
		}
	}
	return out
}

// PermitsRole reports whether role can ever perform the transition. Owner
// transitions additionally require the caller to own the proposal.
func (t Transition) PermitsRole(role id.Role) bool {
	switch t.Actor {
	case ActorOwner:
		return role == id.RoleStudent
	case ActorReviewer:
		return role.IsReviewer()
	default:
		return false
	}
}

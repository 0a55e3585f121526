package lifecycle

import (
	"sort"
	"strings"
	"time"

	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
)

// Guard is the single authorization gateway for proposal writes. Every check
// is side-effect free: it reads its arguments and returns nil or a domain
// error.
//
// Content payloads that name a protected or out-of-section field are refused
// as a whole; fields are never silently dropped.
type Guard struct{}

// CheckContentFields enforces the field scope of a section update.
func (Guard) CheckContentFields(section models.Section, fields map[string]any) error {
	if _, err := models.ParseSection(string(section)); err != nil {
		return err
	}
	if len(fields) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "no fields to update")
	}

	var protected, foreign []string
	for field := range fields {
		switch {
		case models.IsProtectedField(field):
			protected = append(protected, field)
		case !section.AllowsField(field):
			foreign = append(foreign, field)
		}
	}
	if len(protected) > 0 {
		sort.Strings(protected)
		return dErrors.New(dErrors.CodeForbiddenField,
			"fields are managed by the review workflow: "+strings.Join(protected, ", "))
	}
	if len(foreign) > 0 {
		sort.Strings(foreign)
		return dErrors.New(dErrors.CodeForbiddenField,
			"fields do not belong to section "+string(section)+": "+strings.Join(foreign, ", "))
	}
	return nil
}

// CheckContentAccess enforces who may edit a proposal's content: the owning
// student, or any reviewer.
func (Guard) CheckContentAccess(caller id.Caller, p *models.Proposal) error {
	if caller.ID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}
	if caller.Role.IsReviewer() {
		return nil
	}
	if caller.Role == id.RoleStudent && p.IsOwnedBy(caller.ID) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "caller may not edit this proposal")
}

// CheckTransition validates a transition against the proposal as read under
// the transaction's lock. Order: legality, role, ownership, current state,
// event completion.
func (Guard) CheckTransition(caller id.Caller, current *models.Proposal, from, to models.Status, now time.Time) (Transition, error) {
	t, err := LookupTransition(from, to)
	if err != nil {
		return Transition{}, err
	}
	if caller.ID.IsNil() {
		return Transition{}, dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}
	if !t.PermitsRole(caller.Role) {
		return Transition{}, dErrors.New(dErrors.CodeForbidden,
			"role "+string(caller.Role)+" may not perform "+t.Name)
	}
	if t.Actor == ActorOwner && !current.IsOwnedBy(caller.ID) {
		return Transition{}, dErrors.New(dErrors.CodeForbidden, "only the proposal owner may perform "+t.Name)
	}
	if current.Status != from {
		return Transition{}, dErrors.New(dErrors.CodeConflict,
			"proposal is "+string(current.Status)+", not "+string(from))
	}
	if t.RequiresEventEnded {
		if err := checkEventEnded(current, now); err != nil {
			return Transition{}, err
		}
	}
	return t, nil
}

// checkEventEnded refuses reporting until the event's end date has passed.
func checkEventEnded(p *models.Proposal, now time.Time) error {
	endsAt, ok := p.EventEndsAt()
	if !ok {
		return dErrors.New(dErrors.CodeConflict,
			"reporting requires a valid event_info.end_date (YYYY-MM-DD or RFC 3339)")
	}
	if now.Before(endsAt) {
		return dErrors.New(dErrors.CodeConflict,
			"reporting opens once the event has ended at "+endsAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// CheckRead enforces who may see a proposal and its history.
func (Guard) CheckRead(caller id.Caller, p *models.Proposal) error {
	if caller.ID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}
	if caller.Role.IsReviewer() || p.IsOwnedBy(caller.ID) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "caller may not view this proposal")
}

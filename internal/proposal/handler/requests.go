package handler

import (
	"strings"

	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
)

// TransitionRequest is the body of POST /proposals/{id}/transitions.
type TransitionRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	ReviewerID string `json:"reviewer_id,omitempty"`

	parsedFrom     models.Status
	parsedTo       models.Status
	parsedReviewer *id.UserID
}

// Validate implements httputil.Validatable.
func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.From = strings.TrimSpace(r.From)
	r.To = strings.TrimSpace(r.To)
	if r.From == "" || r.To == "" {
		return dErrors.New(dErrors.CodeValidation, "from and to are required")
	}

	from, err := models.ParseStatus(r.From)
	if err != nil {
		return err
	}
	to, err := models.ParseStatus(r.To)
	if err != nil {
		return err
	}
	r.parsedFrom, r.parsedTo = from, to

	if r.ReviewerID = strings.TrimSpace(r.ReviewerID); r.ReviewerID != "" {
		reviewer, err := id.ParseUserID(r.ReviewerID)
		if err != nil {
			return err
		}
		r.parsedReviewer = &reviewer
	}
	return nil
}

// ContentPayload is the body of PATCH /proposals/{id}/sections/{section}:
// a flat object of field names to values.
type ContentPayload map[string]any

// Validate implements httputil.Validatable. Field scope is checked by the
// lifecycle guard, not here.
func (p *ContentPayload) Validate() error {
	if p == nil || len(*p) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "at least one field is required")
	}
	return nil
}

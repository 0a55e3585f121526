package handler

import (
	"encoding/json"
	"time"

	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/audit"
)

// ProposalResponse is the public view of a proposal.
type ProposalResponse struct {
	ID            id.ProposalID                     `json:"id"`
	OwnerID       id.UserID                         `json:"owner_id"`
	Status        models.Status                     `json:"status"`
	Sections      map[models.Section]models.Content `json:"sections"`
	AllowedNext   []models.Status                   `json:"allowed_next"`
	TransitionSeq int64                             `json:"transition_seq"`
	ReviewedBy    *id.UserID                        `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time                        `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time                         `json:"created_at"`
	UpdatedAt     time.Time                         `json:"updated_at"`
}

func toProposalResponse(p *models.Proposal, allowedNext []models.Status) ProposalResponse {
	if allowedNext == nil {
		allowedNext = []models.Status{}
	}
	sections := p.Sections
	if sections == nil {
		sections = map[models.Section]models.Content{}
	}
	return ProposalResponse{
		ID:            p.UUID,
		OwnerID:       p.OwnerID,
		Status:        p.Status,
		Sections:      sections,
		AllowedNext:   allowedNext,
		TransitionSeq: p.TransitionSeq,
		ReviewedBy:    p.ReviewedBy,
		ReviewedAt:    p.ReviewedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// HistoryEntry is one audit row as shown to clients.
type HistoryEntry struct {
	ID        id.AuditEntryID  `json:"id"`
	ActorID   id.UserID        `json:"actor_id"`
	Action    audit.ActionType `json:"action_type"`
	Detail    json.RawMessage  `json:"detail"`
	CreatedAt time.Time        `json:"created_at"`
}

type HistoryResponse struct {
	ProposalID id.ProposalID  `json:"proposal_id"`
	Entries    []HistoryEntry `json:"entries"`
}

func toHistoryResponse(proposalID id.ProposalID, entries []audit.Entry) HistoryResponse {
	out := HistoryResponse{ProposalID: proposalID, Entries: make([]HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, HistoryEntry{
			ID:        e.ID,
			ActorID:   e.ActorID,
			Action:    e.Action,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

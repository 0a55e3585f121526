package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proposals/internal/proposal/lifecycle"
	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/audit"
	"proposals/pkg/platform/httputil"
	"proposals/pkg/requestcontext"
)

// Service is the lifecycle authority as seen by HTTP.
type Service interface {
	Create(ctx context.Context, caller id.Caller) (*models.Proposal, error)
	Get(ctx context.Context, proposalID id.ProposalID, caller id.Caller) (*models.Proposal, error)
	History(ctx context.Context, proposalID id.ProposalID, caller id.Caller) ([]audit.Entry, error)
	ApplyContentUpdate(ctx context.Context, proposalID id.ProposalID, section models.Section, fields map[string]any, caller id.Caller) (*models.Proposal, error)
	ApplyTransition(ctx context.Context, req lifecycle.TransitionRequest) (*models.Proposal, error)
}

// Handler wires proposal endpoints to the lifecycle authority. It holds no
// rules of its own: every decision is the service's.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts proposal endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proposals", h.HandleCreate)
	r.Get("/proposals/{id}", h.HandleGet)
	r.Patch("/proposals/{id}/sections/{section}", h.HandleUpdateSection)
	r.Post("/proposals/{id}/transitions", h.HandleTransition)
	r.Get("/proposals/{id}/history", h.HandleHistory)
}

// HandleCreate handles POST /proposals.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.service.Create(ctx, requestcontext.Caller(ctx))
	if err != nil {
		h.fail(ctx, w, "create proposal failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toProposalResponse(p, lifecycle.AllowedFrom(p.Status)))
}

// HandleGet handles GET /proposals/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proposalID, err := id.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Get(ctx, proposalID, requestcontext.Caller(ctx))
	if err != nil {
		h.fail(ctx, w, "get proposal failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProposalResponse(p, lifecycle.AllowedFrom(p.Status)))
}

// HandleUpdateSection handles PATCH /proposals/{id}/sections/{section}.
func (h *Handler) HandleUpdateSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	proposalID, err := id.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	section, err := models.ParseSection(chi.URLParam(r, "section"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, ok := httputil.DecodeAndPrepare[ContentPayload](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.ApplyContentUpdate(ctx, proposalID, section, *payload, requestcontext.Caller(ctx))
	if err != nil {
		h.fail(ctx, w, "section update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProposalResponse(p, lifecycle.AllowedFrom(p.Status)))
}

// HandleTransition handles POST /proposals/{id}/transitions.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	proposalID, err := id.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.ApplyTransition(ctx, lifecycle.TransitionRequest{
		ProposalID: proposalID,
		From:       req.parsedFrom,
		To:         req.parsedTo,
		Caller:     requestcontext.Caller(ctx),
		ReviewerID: req.parsedReviewer,
	})
	if err != nil {
		h.fail(ctx, w, "transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProposalResponse(p, lifecycle.AllowedFrom(p.Status)))
}

// HandleHistory handles GET /proposals/{id}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proposalID, err := id.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.History(ctx, proposalID, requestcontext.Caller(ctx))
	if err != nil {
		h.fail(ctx, w, "history lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistoryResponse(proposalID, entries))
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", requestcontext.UserID(ctx).String(),
		"error", err,
	)
	httputil.WriteError(w, err)
}

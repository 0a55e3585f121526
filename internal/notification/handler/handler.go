package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"proposals/internal/notification/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
	"proposals/pkg/platform/httputil"
	"proposals/pkg/requestcontext"
)

// Service is the recipient-facing notification API.
type Service interface {
	List(ctx context.Context, recipient id.UserID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID, recipient id.UserID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts notification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.HandleList)
	r.Post("/notifications/{id}/read", h.HandleMarkRead)
}

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// HandleList handles GET /notifications?unread=true.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unread must be a boolean"))
			return
		}
		unreadOnly = v
	}

	items, err := h.service.List(ctx, requestcontext.UserID(ctx), unreadOnly)
	if err != nil {
		h.fail(ctx, w, "list notifications failed", err)
		return
	}
	resp := listResponse{Notifications: items}
	for _, n := range items {
		if !n.IsRead {
			resp.Unread++
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleMarkRead handles POST /notifications/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.MarkRead(ctx, notificationID, requestcontext.UserID(ctx)); err != nil {
		h.fail(ctx, w, "mark notification read failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

// Package service exposes a recipient's notifications.
package service

import (
	"context"
	"errors"
	"log/slog"

	"proposals/internal/notification/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
	"proposals/pkg/platform/sentinel"
)

// Store is the read side of the notifications table.
type Store interface {
	ListByRecipient(ctx context.Context, recipient id.UserID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID, recipient id.UserID) error
}

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, recipient id.UserID, unreadOnly bool) ([]models.Notification, error) {
	if recipient.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}
	out, err := s.store.ListByRecipient(ctx, recipient, unreadOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	if out == nil {
		out = []models.Notification{}
	}
	return out, nil
}

// MarkRead flags one of the caller's notifications as read. Someone else's
// notification is indistinguishable from a missing one.
func (s *Service) MarkRead(ctx context.Context, notificationID id.NotificationID, recipient id.UserID) error {
	if recipient.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}
	if err := s.store.MarkRead(ctx, notificationID, recipient); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}
	s.logger.DebugContext(ctx, "notification marked read",
		"notification_id", notificationID.String(),
		"recipient_id", recipient.String(),
	)
	return nil
}

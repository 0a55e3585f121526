package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"proposals/internal/notification/models"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/sentinel"
	"proposals/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists notifications. The notifications_transition_unique
// constraint is the source of truth for deduplication.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InsertIfAbsent inserts n unless a row with the same uniqueness key exists.
// It reports whether a row was written.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, n models.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (id, recipient_id, notification_type, message, is_read,
			related_proposal_id, related_proposal_uuid, transition_key, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT notifications_transition_unique DO NOTHING
	`
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(n.ID),
		uuid.UUID(n.RecipientID),
		string(n.Type),
		n.Message,
		n.RelatedProposalID,
		uuid.UUID(n.RelatedProposalUUID),
		n.TransitionKey,
		n.CreatedAt,
	)
	if err != nil {
		// A primary-key collision on a retried id is the same delivery.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("insert notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, recipient id.UserID, unreadOnly bool) ([]models.Notification, error) {
	query := `
		SELECT id, recipient_id, notification_type, message, is_read,
			related_proposal_id, related_proposal_uuid, transition_key, created_at
		FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR is_read = FALSE)
		ORDER BY created_at DESC, id ASC
	`
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(recipient), unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n           models.Notification
			nID         uuid.UUID
			recipientID uuid.UUID
			nType       string
			proposalID  uuid.UUID
		)
		if err := rows.Scan(&nID, &recipientID, &nType, &n.Message, &n.IsRead,
			&n.RelatedProposalID, &proposalID, &n.TransitionKey, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID = id.NotificationID(nID)
		n.RecipientID = id.UserID(recipientID)
		n.Type = models.Type(nType)
		n.RelatedProposalUUID = id.ProposalID(proposalID)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// MarkRead flips is_read only for the owning recipient.
func (s *PostgresStore) MarkRead(ctx context.Context, notificationID id.NotificationID, recipient id.UserID) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(notificationID), uuid.UUID(recipient))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "proposals/pkg/domain"
	"proposals/pkg/platform/audit"
	"proposals/pkg/platform/sentinel"
	"proposals/pkg/platform/tx"
)

// checkViolation is the SQLSTATE raised when audit_logs_action_type_check
// refuses a row.
const checkViolation = "23514"

// Store implements audit.Store over the audit_logs table. Appends join the
// transaction carried in ctx so the entry commits or rolls back together with
// the mutation it describes.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one audit row.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO audit_logs (id, actor_id, action_type, table_name, record_id, detail, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	detail := []byte(entry.Detail)
	if len(detail) == 0 {
		detail = []byte(`{}`)
	}
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		uuid.UUID(entry.ActorID),
		string(entry.Action),
		entry.TableName,
		entry.RecordID,
		string(detail),
		entry.RequestID,
		entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == checkViolation {
			return fmt.Errorf("insert audit entry: %w", sentinel.ErrCheckViolation)
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByRecord returns the entries for one row, oldest first.
func (s *Store) ListByRecord(ctx context.Context, tableName, recordID string) ([]audit.Entry, error) {
	query := `
		SELECT id, actor_id, action_type, table_name, record_id, detail, request_id, created_at
		FROM audit_logs
		WHERE table_name = $1 AND record_id = $2
		ORDER BY created_at ASC, id ASC
	`
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, query, tableName, recordID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry   audit.Entry
			entryID uuid.UUID
			actorID uuid.UUID
			action  string
			detail  []byte
		)
		if err := rows.Scan(&entryID, &actorID, &action, &entry.TableName, &entry.RecordID, &detail, &entry.RequestID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.AuditEntryID(entryID)
		entry.ActorID = id.UserID(actorID)
		entry.Action = audit.ActionType(action)
		entry.Detail = detail
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

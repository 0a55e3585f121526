package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "proposals/pkg/domain"
)

// Postgres reads active admins and reviewers from the users table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) ListReviewers(ctx context.Context) ([]id.UserID, error) {
	query := `
		SELECT id FROM users
		WHERE active AND role IN ('admin', 'reviewer')
		ORDER BY id
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query reviewers: %w", err)
	}
	defer rows.Close()

	var out []id.UserID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan reviewer: %w", err)
		}
		out = append(out, id.UserID(u))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviewers: %w", err)
	}
	return out, nil
}

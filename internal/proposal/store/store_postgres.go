package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"proposals/internal/proposal/lifecycle"
	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/sentinel"
	"proposals/pkg/platform/tx"
)

const uniqueViolation = "23505"

const proposalColumns = `id, uuid, owner_id, status, organization_info, event_info, file_refs,
	reporting_info, transition_seq, reviewed_by, reviewed_at, created_at, updated_at`

// sectionColumns maps each section to its JSONB column. Column names are
// never taken from input.
var sectionColumns = map[models.Section]string{
	models.SectionOrganization: "organization_info",
	models.SectionEvent:        "event_info",
	models.SectionFiles:        "file_refs",
	models.SectionReporting:    "reporting_info",
}

// PostgresStore persists proposals in PostgreSQL. Every method joins the
// transaction carried in ctx when one is present.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed proposal store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Proposal) error {
	query := `
		INSERT INTO proposals (uuid, owner_id, status, transition_seq, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(p.UUID),
		uuid.UUID(p.OwnerID),
		string(p.Status),
		p.TransitionSeq,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("create proposal: %w", sentinel.ErrAlreadyExists)
		}
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUUID(ctx context.Context, proposalID id.ProposalID) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE uuid = $1`
	return s.findOne(ctx, query, proposalID)
}

// FindByUUIDForUpdate reads the row and holds its lock until the enclosing
// transaction ends.
func (s *PostgresStore) FindByUUIDForUpdate(ctx context.Context, proposalID id.ProposalID) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE uuid = $1 FOR UPDATE`
	return s.findOne(ctx, query, proposalID)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, proposalID id.ProposalID) (*models.Proposal, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(proposalID))
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find proposal: %w", err)
	}
	return p, nil
}

// MergeSection overlays fields onto one section's JSONB bag. Other sections
// and the status column are untouched.
func (s *PostgresStore) MergeSection(ctx context.Context, proposalID id.ProposalID, section models.Section, fields map[string]any, updatedAt time.Time) (*models.Proposal, error) {
	column, ok := sectionColumns[section]
	if !ok {
		return nil, fmt.Errorf("merge section: unknown section %q", section)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal section fields: %w", err)
	}

	query := `
		UPDATE proposals
		SET ` + column + ` = COALESCE(` + column + `, '{}'::jsonb) || $2::jsonb,
		    updated_at = $3
		WHERE uuid = $1
		RETURNING ` + proposalColumns
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(proposalID), string(payload), updatedAt)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("merge section: %w", err)
	}
	return p, nil
}

// CompareAndSwapStatus writes the new status only while the stored status
// still equals change.From. Zero affected rows means the proposal is gone
// (ErrNotFound) or another transition won (ErrConflict).
func (s *PostgresStore) CompareAndSwapStatus(ctx context.Context, change lifecycle.StatusChange) (*models.Proposal, error) {
	var reviewedBy any
	if change.ReviewedBy != nil {
		reviewedBy = uuid.UUID(*change.ReviewedBy)
	}
	var reviewedAt any
	if change.ReviewedAt != nil {
		reviewedAt = *change.ReviewedAt
	}

	query := `
		UPDATE proposals
		SET status = $3,
		    transition_seq = transition_seq + 1,
		    reviewed_by = COALESCE($4, reviewed_by),
		    reviewed_at = COALESCE($5, reviewed_at),
		    updated_at = $6
		WHERE uuid = $1 AND status = $2
		RETURNING ` + proposalColumns
	exec := tx.Execer(ctx, s.db)
	row := exec.QueryRowContext(ctx, query,
		uuid.UUID(change.ProposalID),
		string(change.From),
		string(change.To),
		reviewedBy,
		reviewedAt,
		change.UpdatedAt,
	)
	p, err := scanProposal(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("swap proposal status: %w", err)
	}

	var exists bool
	if err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM proposals WHERE uuid = $1)`,
		uuid.UUID(change.ProposalID),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check proposal existence: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var (
		p          models.Proposal
		proposalID uuid.UUID
		ownerID    uuid.UUID
		status     string
		orgInfo    []byte
		eventInfo  []byte
		fileRefs   []byte
		reporting  []byte
		reviewedBy uuid.NullUUID
		reviewedAt sql.NullTime
	)
	if err := row.Scan(
		&p.ID, &proposalID, &ownerID, &status,
		&orgInfo, &eventInfo, &fileRefs, &reporting,
		&p.TransitionSeq, &reviewedBy, &reviewedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.UUID = id.ProposalID(proposalID)
	p.OwnerID = id.UserID(ownerID)
	p.Status = models.Status(status)
	if reviewedBy.Valid {
		rb := id.UserID(reviewedBy.UUID)
		p.ReviewedBy = &rb
	}
	if reviewedAt.Valid {
		ra := reviewedAt.Time
		p.ReviewedAt = &ra
	}

	p.Sections = make(map[models.Section]models.Content, len(sectionColumns))
	for section, raw := range map[models.Section][]byte{
		models.SectionOrganization: orgInfo,
		models.SectionEvent:        eventInfo,
		models.SectionFiles:        fileRefs,
		models.SectionReporting:    reporting,
	} {
		if len(raw) == 0 {
			continue
		}
		var content models.Content
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", section, err)
		}
		p.Sections[section] = content
	}
	return &p, nil
}

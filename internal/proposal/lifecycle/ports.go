package lifecycle

import (
	"context"
	"time"

	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/audit"
	"proposals/pkg/platform/audit/recorder"
)

// ProposalStore is the persistence port for proposals. Implementations join
// the transaction carried in ctx and return sentinel errors:
// sentinel.ErrNotFound for missing rows and sentinel.ErrConflict when a
// compare-and-swap precondition no longer holds.
type ProposalStore interface {
	Create(ctx context.Context, p *models.Proposal) error
	FindByUUID(ctx context.Context, proposalID id.ProposalID) (*models.Proposal, error)
	FindByUUIDForUpdate(ctx context.Context, proposalID id.ProposalID) (*models.Proposal, error)
	MergeSection(ctx context.Context, proposalID id.ProposalID, section models.Section, fields map[string]any, updatedAt time.Time) (*models.Proposal, error)
	CompareAndSwapStatus(ctx context.Context, change StatusChange) (*models.Proposal, error)
}

// StatusChange is a conditional status write: it applies only while the
// stored status still equals From, and increments the transition sequence.
type StatusChange struct {
	ProposalID id.ProposalID
	From       models.Status
	To         models.Status
	ReviewedBy *id.UserID
	ReviewedAt *time.Time
	UpdatedAt  time.Time
}

// AuditRecorder appends audit entries inside the caller's transaction.
type AuditRecorder interface {
	Record(ctx context.Context, rec recorder.Record) (*audit.Entry, error)
	History(ctx context.Context, tableName, recordID string) ([]audit.Entry, error)
}

// Notifier receives committed transitions. It must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, event models.TransitionEvent) error
}

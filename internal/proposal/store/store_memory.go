package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proposals/internal/proposal/lifecycle"
	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/sentinel"
	"proposals/pkg/platform/tx"
)

// InMemoryStore keeps proposals in a map keyed by UUID. Reads return clones;
// writes made inside a memory transaction are reverted if it rolls back.
type InMemoryStore struct {
	mu     sync.RWMutex
	byUUID map[id.ProposalID]*models.Proposal
	nextID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byUUID: make(map[id.ProposalID]*models.Proposal)}
}

func (s *InMemoryStore) Create(ctx context.Context, p *models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUUID[p.UUID]; exists {
		return fmt.Errorf("create proposal %s: %w", p.UUID, sentinel.ErrAlreadyExists)
	}
	s.nextID++
	p.ID = s.nextID
	s.byUUID[p.UUID] = p.Clone()

	key := p.UUID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		delete(s.byUUID, key)
		s.mu.Unlock()
	})
	return nil
}

func (s *InMemoryStore) FindByUUID(_ context.Context, proposalID id.ProposalID) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byUUID[proposalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// FindByUUIDForUpdate is FindByUUID: the memory runner already holds the
// per-proposal lock for the lifetime of the transaction.
func (s *InMemoryStore) FindByUUIDForUpdate(ctx context.Context, proposalID id.ProposalID) (*models.Proposal, error) {
	return s.FindByUUID(ctx, proposalID)
}

func (s *InMemoryStore) MergeSection(ctx context.Context, proposalID id.ProposalID, section models.Section, fields map[string]any, updatedAt time.Time) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byUUID[proposalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	before := p.Clone()

	next := p.Clone()
	next.Sections[section] = next.Sections[section].Merge(fields)
	next.UpdatedAt = updatedAt
	s.byUUID[proposalID] = next

	s.restoreOnRollback(ctx, before)
	return next.Clone(), nil
}

func (s *InMemoryStore) CompareAndSwapStatus(ctx context.Context, change lifecycle.StatusChange) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byUUID[change.ProposalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if p.Status != change.From {
		return nil, sentinel.ErrConflict
	}
	before := p.Clone()

	next := p.Clone()
	next.Status = change.To
	next.TransitionSeq++
	next.UpdatedAt = change.UpdatedAt
	if change.ReviewedBy != nil {
		rb := *change.ReviewedBy
		next.ReviewedBy = &rb
	}
	if change.ReviewedAt != nil {
		ra := *change.ReviewedAt
		next.ReviewedAt = &ra
	}
	s.byUUID[change.ProposalID] = next

	s.restoreOnRollback(ctx, before)
	return next.Clone(), nil
}

func (s *InMemoryStore) restoreOnRollback(ctx context.Context, before *models.Proposal) {
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		s.byUUID[before.UUID] = before
		s.mu.Unlock()
	})
}

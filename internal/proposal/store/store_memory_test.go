package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"proposals/internal/proposal/lifecycle"
	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/sentinel"
	"proposals/pkg/platform/tx"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newDraft() *models.Proposal {
	p, err := models.NewDraft(id.ProposalID(uuid.New()), id.UserID(uuid.New()), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, p))
	return p
}

func (s *InMemoryStoreSuite) TestCreate() {
	s.Run("assigns surrogate ids in order", func() {
		first := s.newDraft()
		second := s.newDraft()
		s.Equal(first.ID+1, second.ID)
	})

	s.Run("duplicate uuid is refused", func() {
		p := s.newDraft()
		err := s.store.Create(s.ctx, p)
		s.ErrorIs(err, sentinel.ErrAlreadyExists)
	})
}

func (s *InMemoryStoreSuite) TestFindByUUID() {
	s.Run("missing proposal", func() {
		_, err := s.store.FindByUUID(s.ctx, id.ProposalID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns a copy", func() {
		p := s.newDraft()
		got, err := s.store.FindByUUID(s.ctx, p.UUID)
		s.Require().NoError(err)
		got.Status = models.StatusApproved
		got.Sections[models.SectionEvent] = models.Content{"venue": "Hall"}

		again, err := s.store.FindByUUID(s.ctx, p.UUID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, again.Status)
		s.Nil(again.Sections[models.SectionEvent])
	})
}

func (s *InMemoryStoreSuite) TestMergeSection() {
	p := s.newDraft()
	later := s.now.Add(time.Hour)

	_, err := s.store.MergeSection(s.ctx, p.UUID, models.SectionEvent, map[string]any{"venue": "Hall A"}, later)
	s.Require().NoError(err)
	got, err := s.store.MergeSection(s.ctx, p.UUID, models.SectionEvent, map[string]any{"budget": 1200.0}, later)
	s.Require().NoError(err)

	s.Equal(models.Content{"venue": "Hall A", "budget": 1200.0}, got.Sections[models.SectionEvent])
	s.Nil(got.Sections[models.SectionOrganization])
	s.Equal(models.StatusDraft, got.Status)
	s.Equal(later, got.UpdatedAt)

	_, err = s.store.MergeSection(s.ctx, id.ProposalID(uuid.New()), models.SectionEvent, map[string]any{"venue": "x"}, later)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestCompareAndSwapStatus() {
	s.Run("applies when status matches", func() {
		p := s.newDraft()
		got, err := s.store.CompareAndSwapStatus(s.ctx, lifecycle.StatusChange{
			ProposalID: p.UUID, From: models.StatusDraft, To: models.StatusPending, UpdatedAt: s.now,
		})
		s.Require().NoError(err)
		s.Equal(models.StatusPending, got.Status)
		s.Equal(int64(1), got.TransitionSeq)
		s.Nil(got.ReviewedBy)
	})

	s.Run("stale from is a conflict", func() {
		p := s.newDraft()
		_, err := s.store.CompareAndSwapStatus(s.ctx, lifecycle.StatusChange{
			ProposalID: p.UUID, From: models.StatusPending, To: models.StatusApproved, UpdatedAt: s.now,
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing proposal", func() {
		_, err := s.store.CompareAndSwapStatus(s.ctx, lifecycle.StatusChange{
			ProposalID: id.ProposalID(uuid.New()), From: models.StatusDraft, To: models.StatusPending,
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("records the reviewer", func() {
		p := s.newDraft()
		_, err := s.store.CompareAndSwapStatus(s.ctx, lifecycle.StatusChange{
			ProposalID: p.UUID, From: models.StatusDraft, To: models.StatusPending, UpdatedAt: s.now,
		})
		s.Require().NoError(err)
		reviewer := id.UserID(uuid.New())
		got, err := s.store.CompareAndSwapStatus(s.ctx, lifecycle.StatusChange{
			ProposalID: p.UUID, From: models.StatusPending, To: models.StatusApproved,
			ReviewedBy: &reviewer, ReviewedAt: &s.now, UpdatedAt: s.now,
		})
		s.Require().NoError(err)
		s.Require().NotNil(got.ReviewedBy)
		s.Equal(reviewer, *got.ReviewedBy)
		s.Equal(int64(2), got.TransitionSeq)
	})
}

func (s *InMemoryStoreSuite) TestRollbackRestoresProposal() {
	runner := tx.NewMemoryRunner(time.Second)
	p := s.newDraft()
	boom := errors.New("audit unavailable")

	err := runner.RunInTx(tx.WithLockKey(s.ctx, p.UUID.String()), func(ctx context.Context) error {
		if _, err := s.store.MergeSection(ctx, p.UUID, models.SectionEvent, map[string]any{"venue": "Hall"}, s.now); err != nil {
			return err
		}
		if _, err := s.store.CompareAndSwapStatus(ctx, lifecycle.StatusChange{
			ProposalID: p.UUID, From: models.StatusDraft, To: models.StatusPending, UpdatedAt: s.now,
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.FindByUUID(s.ctx, p.UUID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, got.Status)
	s.Equal(int64(0), got.TransitionSeq)
	s.Nil(got.Sections[models.SectionEvent])
}

func (s *InMemoryStoreSuite) TestRollbackRemovesCreated() {
	runner := tx.NewMemoryRunner(time.Second)
	p, err := models.NewDraft(id.ProposalID(uuid.New()), id.UserID(uuid.New()), s.now)
	s.Require().NoError(err)

	err = runner.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, p); err != nil {
			return err
		}
		return errors.New("audit unavailable")
	})
	s.Require().Error(err)

	_, err = s.store.FindByUUID(s.ctx, p.UUID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

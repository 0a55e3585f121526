//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"proposals/internal/proposal/lifecycle"
	"proposals/internal/proposal/models"
	"proposals/internal/proposal/store"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/sentinel"
	"proposals/pkg/platform/tx"
	"proposals/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	runner   *tx.SQLRunner
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB, 5*time.Second)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "proposals"))
}

func (s *PostgresStoreSuite) pending() *models.Proposal {
	ctx := context.Background()
	p, err := models.NewDraft(id.ProposalID(uuid.New()), id.UserID(uuid.New()), time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, p))
	_, err = s.store.CompareAndSwapStatus(ctx, lifecycle.StatusChange{
		ProposalID: p.UUID, From: models.StatusDraft, To: models.StatusPending, UpdatedAt: time.Now().UTC(),
	})
	s.Require().NoError(err)
	return p
}

// TestConcurrentReviewDecisions races approve against reject on one pending
// proposal: exactly one swap may win.
func (s *PostgresStoreSuite) TestConcurrentReviewDecisions() {
	p := s.pending()
	var wins, conflicts atomic.Int32

	g, ctx := errgroup.WithContext(context.Background())
	for _, to := range []models.Status{models.StatusApproved, models.StatusRejected} {
		g.Go(func() error {
			err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
				current, err := s.store.FindByUUIDForUpdate(ctx, p.UUID)
				if err != nil {
					return err
				}
				if current.Status != models.StatusPending {
					return sentinel.ErrConflict
				}
				_, err = s.store.CompareAndSwapStatus(ctx, lifecycle.StatusChange{
					ProposalID: p.UUID, From: models.StatusPending, To: to, UpdatedAt: time.Now().UTC(),
				})
				return err
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(1), conflicts.Load())

	got, err := s.store.FindByUUID(context.Background(), p.UUID)
	s.Require().NoError(err)
	s.Equal(int64(2), got.TransitionSeq)
}

func (s *PostgresStoreSuite) TestMergeSectionKeepsOtherSections() {
	ctx := context.Background()
	p := s.pending()

	_, err := s.store.MergeSection(ctx, p.UUID, models.SectionOrganization, map[string]any{"organization_name": "Chess Club"}, time.Now().UTC())
	s.Require().NoError(err)
	got, err := s.store.MergeSection(ctx, p.UUID, models.SectionEvent, map[string]any{"venue": "Hall A"}, time.Now().UTC())
	s.Require().NoError(err)

	s.Equal(models.Content{"organization_name": "Chess Club"}, got.Sections[models.SectionOrganization])
	s.Equal(models.Content{"venue": "Hall A"}, got.Sections[models.SectionEvent])
	s.Equal(models.StatusPending, got.Status)
}

func (s *PostgresStoreSuite) TestRollbackDiscardsSwap() {
	p := s.pending()
	boom := errors.New("audit unavailable")

	err := s.runner.RunInTx(context.Background(), func(ctx context.Context) error {
		if _, err := s.store.CompareAndSwapStatus(ctx, lifecycle.StatusChange{
			ProposalID: p.UUID, From: models.StatusPending, To: models.StatusApproved, UpdatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.FindByUUID(context.Background(), p.UUID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
}

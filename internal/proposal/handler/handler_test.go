package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"proposals/internal/proposal/handler/mocks"
	"proposals/internal/proposal/lifecycle"
	"proposals/internal/proposal/models"
	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
	"proposals/pkg/platform/audit"
	"proposals/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ProposalHandlerSuite struct {
	suite.Suite
	service  *mocks.MockService
	router   chi.Router
	student  id.Caller
	proposal *models.Proposal
}

func TestProposalHandlerSuite(t *testing.T) {
	suite.Run(t, new(ProposalHandlerSuite))
}

func (s *ProposalHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)

	s.student = id.Caller{ID: id.UserID(uuid.New()), Role: id.RoleStudent}
	p, err := models.NewDraft(id.ProposalID(uuid.New()), s.student.ID, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.proposal = p
}

func (s *ProposalHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	return testutil.DoRequest(s.router, testutil.AsCaller(req, s.student))
}

func (s *ProposalHandlerSuite) TestCreate() {
	s.service.EXPECT().Create(gomock.Any(), s.student).Return(s.proposal, nil)

	rec := s.do(http.MethodPost, "/proposals", nil)

	s.Equal(http.StatusCreated, rec.Code)
	var resp ProposalResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(s.proposal.UUID, resp.ID)
	s.Equal(models.StatusDraft, resp.Status)
	s.Equal([]models.Status{models.StatusPending}, resp.AllowedNext)
}

func (s *ProposalHandlerSuite) TestGet() {
	s.Run("malformed id never reaches the service", func() {
		rec := s.do(http.MethodGet, "/proposals/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("not found", func() {
		s.service.EXPECT().Get(gomock.Any(), s.proposal.UUID, s.student).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "proposal not found"))
		rec := s.do(http.MethodGet, "/proposals/"+s.proposal.UUID.String(), nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *ProposalHandlerSuite) TestUpdateSection() {
	path := "/proposals/" + s.proposal.UUID.String() + "/sections/event_info"

	s.Run("passes fields through", func() {
		updated := s.proposal.Clone()
		updated.Sections[models.SectionEvent] = models.Content{"venue": "Hall A"}
		s.service.EXPECT().
			ApplyContentUpdate(gomock.Any(), s.proposal.UUID, models.SectionEvent, map[string]any{"venue": "Hall A"}, s.student).
			Return(updated, nil)

		rec := s.do(http.MethodPatch, path, map[string]any{"venue": "Hall A"})
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("forbidden field maps to 403", func() {
		s.service.EXPECT().
			ApplyContentUpdate(gomock.Any(), s.proposal.UUID, models.SectionEvent, gomock.Any(), s.student).
			Return(nil, dErrors.New(dErrors.CodeForbiddenField, "fields are managed by the review workflow: status"))

		rec := s.do(http.MethodPatch, path, map[string]any{"status": "approved"})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "forbidden_field")
	})

	s.Run("unknown section", func() {
		rec := s.do(http.MethodPatch, "/proposals/"+s.proposal.UUID.String()+"/sections/appendix", map[string]any{"x": 1})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("empty payload", func() {
		rec := s.do(http.MethodPatch, path, map[string]any{})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *ProposalHandlerSuite) TestTransition() {
	path := "/proposals/" + s.proposal.UUID.String() + "/transitions"

	s.Run("submits", func() {
		pending := s.proposal.Clone()
		pending.Status = models.StatusPending
		s.service.EXPECT().ApplyTransition(gomock.Any(), lifecycle.TransitionRequest{
			ProposalID: s.proposal.UUID,
			From:       models.StatusDraft,
			To:         models.StatusPending,
			Caller:     s.student,
		}).Return(pending, nil)

		rec := s.do(http.MethodPost, path, map[string]string{"from": "draft", "to": "pending"})
		s.Equal(http.StatusOK, rec.Code)
		var resp ProposalResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(models.StatusPending, resp.Status)
	})

	s.Run("conflict maps to 409", func() {
		s.service.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "proposal is approved, not pending"))
		rec := s.do(http.MethodPost, path, map[string]string{"from": "pending", "to": "rejected"})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, "conflict")
	})

	s.Run("illegal transition maps to 400", func() {
		s.service.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeIllegalTransition, "illegal transition: draft -> approved"))
		rec := s.do(http.MethodPost, path, map[string]string{"from": "draft", "to": "approved"})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusBadRequest, "illegal_transition")
	})

	s.Run("unknown status never reaches the service", func() {
		rec := s.do(http.MethodPost, path, map[string]string{"from": "draft", "to": "archived"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("reviewer id is parsed", func() {
		reviewer := id.UserID(uuid.New())
		s.service.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req lifecycle.TransitionRequest) (*models.Proposal, error) {
				s.Require().NotNil(req.ReviewerID)
				s.Equal(reviewer, *req.ReviewerID)
				return s.proposal, nil
			})
		rec := s.do(http.MethodPost, path, map[string]string{"from": "pending", "to": "approved", "reviewer_id": reviewer.String()})
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *ProposalHandlerSuite) TestHistory() {
	entries := []audit.Entry{{
		ID:        id.AuditEntryID(uuid.New()),
		ActorID:   s.student.ID,
		Action:    audit.ActionCreate,
		TableName: models.TableName,
		RecordID:  s.proposal.UUID.String(),
		Detail:    json.RawMessage(`{"status":"draft"}`),
	}}
	s.service.EXPECT().History(gomock.Any(), s.proposal.UUID, s.student).Return(entries, nil)

	rec := s.do(http.MethodGet, "/proposals/"+s.proposal.UUID.String()+"/history", nil)

	s.Equal(http.StatusOK, rec.Code)
	var resp HistoryResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().Len(resp.Entries, 1)
	s.Equal(audit.ActionCreate, resp.Entries[0].Action)
}

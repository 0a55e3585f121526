// Package directory answers "who reviews proposals?" for notification
// fan-out.
package directory

import (
	"context"
	"sort"
	"sync"

	id "proposals/pkg/domain"
)

// Static is a fixed reviewer list, used by the in-memory backend and tests.
type Static struct {
	mu        sync.RWMutex
	reviewers []id.UserID
	failErr   error
}

func NewStatic(reviewers ...id.UserID) *Static {
	return &Static{reviewers: reviewers}
}

// Set replaces the reviewer list.
func (s *Static) Set(reviewers ...id.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewers = reviewers
}

// FailWith makes ListReviewers return err. Pass nil to recover.
func (s *Static) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *Static) ListReviewers(_ context.Context) ([]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	out := append([]id.UserID{}, s.reviewers...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

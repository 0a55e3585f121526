package dispatcher

import (
	"context"

	proposalmodels "proposals/internal/proposal/models"
)

// Synchronous delivers in the caller's goroutine with no retry. The lifecycle
// authority calls it only after commit, so a failure is still never visible
// to the client.
type Synchronous struct {
	deliverer Deliverer
}

func NewSynchronous(deliverer Deliverer) *Synchronous {
	return &Synchronous{deliverer: deliverer}
}

func (s *Synchronous) Notify(ctx context.Context, event proposalmodels.TransitionEvent) error {
	_, err := s.deliverer.FanOut(ctx, event)
	return err
}

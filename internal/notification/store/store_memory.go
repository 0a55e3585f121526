package store

import (
	"context"
	"sort"
	"sync"

	"proposals/internal/notification/models"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/sentinel"
)

// InMemoryStore enforces the notification uniqueness key with a map index.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.NotificationID]*models.Notification
	byDedup map[models.DedupKey]id.NotificationID
	failErr error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.NotificationID]*models.Notification),
		byDedup: make(map[models.DedupKey]id.NotificationID),
	}
}

// FailWith makes every subsequent insert return err. Pass nil to recover.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *InMemoryStore) InsertIfAbsent(_ context.Context, n models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	key := n.DedupKey()
	if _, exists := s.byDedup[key]; exists {
		return false, nil
	}
	stored := n
	s.byID[n.ID] = &stored
	s.byDedup[key] = n.ID
	return true, nil
}

// ListByRecipient returns the recipient's notifications, newest first.
func (s *InMemoryStore) ListByRecipient(_ context.Context, recipient id.UserID, unreadOnly bool) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.byID {
		if n.RecipientID != recipient || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// MarkRead flags a notification read. A notification belonging to someone
// else is reported as missing.
func (s *InMemoryStore) MarkRead(_ context.Context, notificationID id.NotificationID, recipient id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[notificationID]
	if !ok || n.RecipientID != recipient {
		return sentinel.ErrNotFound
	}
	n.IsRead = true
	return nil
}

// ListAll returns every stored notification in no particular order.
func (s *InMemoryStore) ListAll(_ context.Context) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.byID))
	for _, n := range s.byID {
		out = append(out, *n)
	}
	return out
}

package memory

import (
	"context"
	"sync"

	id "proposals/pkg/domain"
	dErrors "proposals/pkg/domain-errors"
	"proposals/pkg/platform/audit"
	"proposals/pkg/platform/tx"
)

// InMemoryStore keeps audit entries in append order. Appends made inside a
// memory transaction are withdrawn if that transaction rolls back.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	failErr error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// FailWith makes every subsequent Append return err. Pass nil to recover.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *InMemoryStore) Append(ctx context.Context, entry audit.Entry) error {
	// Mirrors the CHECK constraint on the audit table.
	if !entry.Action.IsValid() {
		return dErrors.New(dErrors.CodeInvalidActionType, "audit_logs_action_type_check")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.entries = append(s.entries, entry)
	entryID := entry.ID
	tx.OnRollback(ctx, func() { s.remove(entryID) })
	return nil
}

func (s *InMemoryStore) remove(entryID id.AuditEntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ID == entryID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *InMemoryStore) ListByRecord(_ context.Context, tableName, recordID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if e.TableName == tableName && e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListAll returns every entry in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries...), nil
}

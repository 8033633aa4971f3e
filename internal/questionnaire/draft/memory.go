package draft

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

func (s *MemoryStore) Load(_ context.Context, leadID, sessionType string) (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[draftKey(leadID, sessionType)]
	return snapshot, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[draftKey(snapshot.LeadID, snapshot.SessionType)] = snapshot
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, leadID, sessionType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, draftKey(leadID, sessionType))
	return nil
}

var _ Store = (*MemoryStore)(nil)

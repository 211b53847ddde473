package incidents

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps incident records in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get returns the incident id recorded for (alertID, stage).
func (s *MemoryStore) Get(ctx context.Context, alertID, stage string) (string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	incidentID, ok := s.data[alertID+"|"+stage]
	if !ok {
		return "", ErrNotRecorded
	}
	return incidentID, nil
}

// Record stores the incident id for (alertID, stage).
func (s *MemoryStore) Record(ctx context.Context, alertID, stage, incidentID string, at time.Time) error {
	_ = ctx
	_ = at
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[alertID+"|"+stage] = incidentID
	return nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/classify"
	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

// ObservationStore keeps observations in memory, for tests and
// single-node development runs.
type ObservationStore struct {
	mu   sync.RWMutex
	data []scoring.Observation
}

// NewObservationStore constructs an empty store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{}
}

// Append records one observation.
func (s *ObservationStore) Append(ctx context.Context, obs scoring.Observation) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, obs)
	return nil
}

// TallyWindow counts observations for a location and pillar in [from, to).
func (s *ObservationStore) TallyWindow(ctx context.Context, locationID string, pillar scoring.PillarKind, from, to time.Time) (scoring.Tally, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tally scoring.Tally
	for _, obs := range s.data {
		if obs.LocationID != locationID || obs.Pillar != pillar {
			continue
		}
		if obs.RecordedAt.Before(from) || !obs.RecordedAt.Before(to) {
			continue
		}
		switch obs.Condition {
		case classify.CondInRange:
			tally.InRange++
		case classify.CondWarning:
			tally.Warning++
		case classify.CondViolation, classify.CondStale:
			tally.Violation++
		}
	}
	return tally, nil
}

// Locations lists distinct locations with observations in [from, to).
func (s *ObservationStore) Locations(ctx context.Context, from, to time.Time) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, obs := range s.data {
		if obs.RecordedAt.Before(from) || !obs.RecordedAt.Before(to) {
			continue
		}
		seen[obs.LocationID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for locationID := range seen {
		out = append(out, locationID)
	}
	sort.Strings(out)
	return out, nil
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

// ScoreRepository keeps overall scores in memory.
type ScoreRepository struct {
	mu   sync.RWMutex
	data map[string][]scoring.OverallScore
}

// NewScoreRepository constructs an empty repository.
func NewScoreRepository() *ScoreRepository {
	return &ScoreRepository{data: make(map[string][]scoring.OverallScore)}
}

// Save appends a computed score for its location.
func (r *ScoreRepository) Save(ctx context.Context, score *scoring.OverallScore) error {
	_ = ctx
	if score == nil {
		return scoring.ErrScoreNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[score.LocationID] = append(r.data[score.LocationID], *score)
	return nil
}

// Latest returns the most recently calculated score for a location.
func (r *ScoreRepository) Latest(ctx context.Context, locationID string) (*scoring.OverallScore, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := r.data[locationID]
	if len(history) == 0 {
		return nil, scoring.ErrScoreNotFound
	}
	best := history[0]
	for _, score := range history[1:] {
		if score.CalculatedAt.After(best.CalculatedAt) {
			best = score
		}
	}
	return &best, nil
}

// ListBetween returns scores calculated within [from, to), oldest first.
func (r *ScoreRepository) ListBetween(ctx context.Context, locationID string, from, to time.Time) ([]scoring.OverallScore, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []scoring.OverallScore
	for _, score := range r.data[locationID] {
		if score.CalculatedAt.Before(from) || !score.CalculatedAt.Before(to) {
			continue
		}
		out = append(out, score)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalculatedAt.Before(out[j].CalculatedAt) })
	return out, nil
}

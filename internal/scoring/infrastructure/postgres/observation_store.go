package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/classify"
	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

// ObservationStore persists pillar observations in Postgres. Tallies are
// computed in SQL so rollup passes never page raw rows into memory.
type ObservationStore struct {
	db *sql.DB
}

// NewObservationStore constructs a store.
func NewObservationStore(db *sql.DB) *ObservationStore {
	return &ObservationStore{db: db}
}

// Append records one observation.
func (s *ObservationStore) Append(ctx context.Context, obs scoring.Observation) error {
	if s == nil || s.db == nil {
		return errors.New("observation store: nil db")
	}
	if obs.LocationID == "" || !obs.Pillar.Valid() {
		return errors.New("observation store: invalid observation")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO score_observations (location_id, pillar, condition, recorded_at)
VALUES ($1, $2, $3, $4)`,
		obs.LocationID, string(obs.Pillar), string(obs.Condition), obs.RecordedAt.UTC())
	return err
}

// TallyWindow counts observations by condition for [from, to).
func (s *ObservationStore) TallyWindow(ctx context.Context, locationID string, pillar scoring.PillarKind, from, to time.Time) (scoring.Tally, error) {
	if s == nil || s.db == nil {
		return scoring.Tally{}, errors.New("observation store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT condition, COUNT(*)
FROM score_observations
WHERE location_id = $1 AND pillar = $2 AND recorded_at >= $3 AND recorded_at < $4
GROUP BY condition`,
		locationID, string(pillar), from.UTC(), to.UTC())
	if err != nil {
		return scoring.Tally{}, err
	}
	defer rows.Close()

	var tally scoring.Tally
	for rows.Next() {
		var condition string
		var count int
		if err := rows.Scan(&condition, &count); err != nil {
			return scoring.Tally{}, err
		}
		switch classify.Condition(condition) {
		case classify.CondInRange:
			tally.InRange += count
		case classify.CondWarning:
			tally.Warning += count
		case classify.CondViolation, classify.CondStale:
			tally.Violation += count
		}
	}
	return tally, rows.Err()
}

// Locations lists distinct locations with observations in [from, to).
func (s *ObservationStore) Locations(ctx context.Context, from, to time.Time) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("observation store: nil db")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT location_id
FROM score_observations
WHERE recorded_at >= $1 AND recorded_at < $2
ORDER BY location_id`,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var locationID string
		if err := rows.Scan(&locationID); err != nil {
			return nil, err
		}
		out = append(out, locationID)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

// ScoreRepository persists overall scores in Postgres. The per-pillar
// breakdown travels as a JSON column since it is read back whole.
type ScoreRepository struct {
	db *sql.DB
}

// NewScoreRepository constructs a repository.
func NewScoreRepository(db *sql.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// Save upserts the score keyed by location and window start.
func (r *ScoreRepository) Save(ctx context.Context, score *scoring.OverallScore) error {
	if r == nil || r.db == nil {
		return errors.New("score repo: nil db")
	}
	if score == nil || score.LocationID == "" {
		return errors.New("score repo: invalid score")
	}
	pillars, err := json.Marshal(score.Pillars)
	if err != nil {
		return err
	}
	missing, err := json.Marshal(score.MissingPillars)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO overall_scores (
	location_id, vertical, window_start, window_end,
	percent, pillars, missing_pillars, calculated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (location_id, window_start) DO UPDATE SET
	vertical = EXCLUDED.vertical,
	window_end = EXCLUDED.window_end,
	percent = EXCLUDED.percent,
	pillars = EXCLUDED.pillars,
	missing_pillars = EXCLUDED.missing_pillars,
	calculated_at = EXCLUDED.calculated_at`,
		score.LocationID,
		score.Vertical,
		score.WindowStart.UTC(),
		score.WindowEnd.UTC(),
		score.Percent,
		pillars,
		missing,
		score.CalculatedAt.UTC(),
	)
	return err
}

// Latest returns the most recently calculated score for a location.
func (r *ScoreRepository) Latest(ctx context.Context, locationID string) (*scoring.OverallScore, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("score repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT location_id, vertical, window_start, window_end,
	percent, pillars, missing_pillars, calculated_at
FROM overall_scores
WHERE location_id = $1
ORDER BY calculated_at DESC
LIMIT 1`, locationID)
	score, err := scanScore(row)
	if err != nil {
		return nil, err
	}
	if score == nil {
		return nil, scoring.ErrScoreNotFound
	}
	return score, nil
}

// ListBetween returns scores calculated within [from, to), oldest first.
func (r *ScoreRepository) ListBetween(ctx context.Context, locationID string, from, to time.Time) ([]scoring.OverallScore, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("score repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT location_id, vertical, window_start, window_end,
	percent, pillars, missing_pillars, calculated_at
FROM overall_scores
WHERE location_id = $1 AND calculated_at >= $2 AND calculated_at < $3
ORDER BY calculated_at ASC`,
		locationID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scoring.OverallScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		if score != nil {
			out = append(out, *score)
		}
	}
	return out, rows.Err()
}

type scoreScanner interface {
	Scan(dest ...any) error
}

func scanScore(row scoreScanner) (*scoring.OverallScore, error) {
	var score scoring.OverallScore
	var pillars, missing []byte
	if err := row.Scan(
		&score.LocationID,
		&score.Vertical,
		&score.WindowStart,
		&score.WindowEnd,
		&score.Percent,
		&pillars,
		&missing,
		&score.CalculatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(pillars) > 0 {
		if err := json.Unmarshal(pillars, &score.Pillars); err != nil {
			return nil, err
		}
	}
	if len(missing) > 0 {
		if err := json.Unmarshal(missing, &score.MissingPillars); err != nil {
			return nil, err
		}
	}
	score.WindowStart = score.WindowStart.UTC()
	score.WindowEnd = score.WindowEnd.UTC()
	score.CalculatedAt = score.CalculatedAt.UTC()
	return &score, nil
}

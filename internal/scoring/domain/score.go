package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/classify"
)

// PillarKind names an operational compliance category scored independently.
type PillarKind string

const (
	PillarTemperature   PillarKind = "temperature"
	PillarDocumentation PillarKind = "documentation"
	PillarEquipment     PillarKind = "equipment"
	PillarTraining      PillarKind = "training"
)

// Pillars returns every scored pillar in a stable order.
func Pillars() []PillarKind {
	return []PillarKind{PillarTemperature, PillarDocumentation, PillarEquipment, PillarTraining}
}

// Valid reports whether the kind is one of the scored pillars.
func (p PillarKind) Valid() bool {
	switch p {
	case PillarTemperature, PillarDocumentation, PillarEquipment, PillarTraining:
		return true
	}
	return false
}

var (
	// ErrUnknownPillar signals a pillar kind outside the scored set.
	ErrUnknownPillar = errors.New("scoring: unknown pillar kind")
	// ErrNoScorablePillars signals a window with no data in any pillar.
	ErrNoScorablePillars = errors.New("scoring: no scorable pillars in window")
	// ErrEmptyWindow signals a zero or inverted rollup window.
	ErrEmptyWindow = errors.New("scoring: empty rollup window")
	// ErrScoreNotFound signals a missing persisted score.
	ErrScoreNotFound = errors.New("scoring: score not found")
)

// Observation is one scored fact inside a pillar: a classified sensor
// sample or a manual check outcome, reduced to a compliance condition.
type Observation struct {
	LocationID string
	Pillar     PillarKind
	Condition  classify.Condition
	RecordedAt time.Time
}

// Tally is the per-condition count of observations in a window.
type Tally struct {
	InRange   int
	Warning   int
	Violation int
}

// Total returns the number of observations behind the tally.
func (t Tally) Total() int { return t.InRange + t.Warning + t.Violation }

// PillarScore is the rollup of one pillar over one window. Scores are
// replaced whole each rollup pass, never mutated in place.
type PillarScore struct {
	Pillar           PillarKind `json:"pillar"`
	LocationID       string     `json:"location_id"`
	WindowStart      time.Time  `json:"window_start"`
	WindowEnd        time.Time  `json:"window_end"`
	InRangeCount     int        `json:"in_range_count"`
	WarningCount     int        `json:"warning_count"`
	ViolationCount   int        `json:"violation_count"`
	TotalCount       int        `json:"total_count"`
	RawPercent       float64    `json:"raw_percent"`
	PenalizedPercent float64    `json:"penalized_percent"`
}

// OverallScore is the weighted combination of pillar scores for one
// location and window. MissingPillars lists pillars with zero
// observations, which are excluded from the weighted sum rather than
// scored as 0% or 100%.
type OverallScore struct {
	LocationID     string        `json:"location_id"`
	Vertical       string        `json:"vertical"`
	WindowStart    time.Time     `json:"window_start"`
	WindowEnd      time.Time     `json:"window_end"`
	Percent        float64       `json:"percent"`
	Pillars        []PillarScore `json:"pillars"`
	MissingPillars []PillarKind  `json:"missing_pillars,omitempty"`
	CalculatedAt   time.Time     `json:"calculated_at"`
}

// ObservationStore records classified observations and answers windowed
// tallies for rollups.
type ObservationStore interface {
	Append(ctx context.Context, obs Observation) error
	TallyWindow(ctx context.Context, locationID string, pillar PillarKind, from, to time.Time) (Tally, error)
	Locations(ctx context.Context, from, to time.Time) ([]string, error)
}

// ScoreRepository persists computed overall scores.
type ScoreRepository interface {
	Save(ctx context.Context, score *OverallScore) error
	Latest(ctx context.Context, locationID string) (*OverallScore, error)
	ListBetween(ctx context.Context, locationID string, from, to time.Time) ([]OverallScore, error)
}

package application

import "time"

// ScoreCalculated announces a freshly persisted overall score.
type ScoreCalculated struct {
	LocationID  string    `json:"location_id"`
	Vertical    string    `json:"vertical"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Percent     float64   `json:"percent"`
	OccurredAt  time.Time `json:"occurred_at"`
}

package telemetry

import (
	"context"
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// Reading is a raw sensor sample. Immutable once classified; re-evaluation
// against a changed threshold produces a new classification, never an edit.
type Reading struct {
	SensorID     string
	LocationID   string
	ZoneKind     thresholds.ZoneKind
	TS           time.Time
	TemperatureF float64
	HumidityPct  *float64
	// DefrostCycle marks samples taken during an equipment defrost cycle.
	// Such readings are excluded from classification and scoring entirely.
	DefrostCycle bool
}

// SensorStatus tracks per-sensor liveness for stale detection.
type SensorStatus struct {
	SensorID        string
	LocationID      string
	ZoneKind        thresholds.ZoneKind
	ExpectedCadence time.Duration
	LastSeenAt      time.Time
}

// ReadingRepository persists sensor readings for the aggregation window.
type ReadingRepository interface {
	InsertReadings(ctx context.Context, readings []Reading) error
}

// ReadingQuery loads retained readings for score rollups.
type ReadingQuery interface {
	QueryWindow(ctx context.Context, locationID string, start, end time.Time) ([]Reading, error)
}

// SensorStatusRepository tracks sensor last-seen state for the stale watcher.
type SensorStatusRepository interface {
	Touch(ctx context.Context, sensorID, locationID string, zoneKind thresholds.ZoneKind, seenAt time.Time) error
	List(ctx context.Context) ([]SensorStatus, error)
}

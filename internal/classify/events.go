package classify

import (
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// ReadingClassified is published for every classified reading and for every
// stale-sensor sweep hit. The alert lifecycle manager is the primary
// consumer.
type ReadingClassified struct {
	SensorID         string              `json:"sensor_id"`
	LocationID       string              `json:"location_id"`
	ZoneKind         thresholds.ZoneKind `json:"zone_kind"`
	TS               time.Time           `json:"ts"`
	TemperatureF     float64             `json:"temperature_f"`
	HumidityPct      *float64            `json:"humidity_pct,omitempty"`
	Condition        Condition           `json:"condition"`
	Kind             ViolationKind       `json:"kind,omitempty"`
	CriticalOverride bool                `json:"critical_override,omitempty"`
	OccurredAt       time.Time           `json:"occurred_at"`
}

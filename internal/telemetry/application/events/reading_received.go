package events

import (
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// ReadingReceived is published after a batch of sensor readings has been
// durably stored. Classification and scoring consume it off the bus.
type ReadingReceived struct {
	SensorID   string              `json:"sensor_id"`
	LocationID string              `json:"location_id"`
	ZoneKind   thresholds.ZoneKind `json:"zone_kind"`
	OccurredAt time.Time           `json:"occurred_at"`
	Samples    []Sample            `json:"samples"`
}

// Sample is one sensor value inside a ReadingReceived event.
type Sample struct {
	TS           time.Time `json:"ts"`
	TemperatureF float64   `json:"temperature_f"`
	HumidityPct  *float64  `json:"humidity_pct,omitempty"`
	DefrostCycle bool      `json:"defrost_cycle,omitempty"`
}

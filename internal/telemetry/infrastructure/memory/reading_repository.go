package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	telemetry "github.com/getevidly/evidly-app-sub001/internal/telemetry/domain"
	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// ReadingRepository keeps readings in memory, for tests and development.
type ReadingRepository struct {
	mu   sync.RWMutex
	data map[string]telemetry.Reading
}

// NewReadingRepository constructs an empty repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{data: make(map[string]telemetry.Reading)}
}

// InsertReadings upserts readings keyed by (sensor, ts).
func (r *ReadingRepository) InsertReadings(ctx context.Context, readings []telemetry.Reading) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reading := range readings {
		key := reading.SensorID + "|" + reading.TS.UTC().Format(time.RFC3339Nano)
		r.data[key] = reading
	}
	return nil
}

// QueryWindow returns readings for a location in [start, end), oldest first.
func (r *ReadingRepository) QueryWindow(ctx context.Context, locationID string, start, end time.Time) ([]telemetry.Reading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []telemetry.Reading
	for _, reading := range r.data {
		if reading.LocationID != locationID {
			continue
		}
		if reading.TS.Before(start) || !reading.TS.Before(end) {
			continue
		}
		out = append(out, reading)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out, nil
}

// SensorStatusRepository keeps sensor liveness in memory.
type SensorStatusRepository struct {
	mu   sync.RWMutex
	data map[string]telemetry.SensorStatus
}

// NewSensorStatusRepository constructs an empty repository.
func NewSensorStatusRepository() *SensorStatusRepository {
	return &SensorStatusRepository{data: make(map[string]telemetry.SensorStatus)}
}

// Touch records that a sensor reported at seenAt.
func (r *SensorStatusRepository) Touch(ctx context.Context, sensorID, locationID string, zoneKind thresholds.ZoneKind, seenAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.data[sensorID]
	if !ok {
		status = telemetry.SensorStatus{SensorID: sensorID}
	}
	status.LocationID = locationID
	status.ZoneKind = zoneKind
	if seenAt.After(status.LastSeenAt) {
		status.LastSeenAt = seenAt.UTC()
	}
	r.data[sensorID] = status
	return nil
}

// List returns the liveness state of every known sensor.
func (r *SensorStatusRepository) List(ctx context.Context) ([]telemetry.SensorStatus, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]telemetry.SensorStatus, 0, len(r.data))
	for _, status := range r.data {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

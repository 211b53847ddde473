package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	telemetry "github.com/getevidly/evidly-app-sub001/internal/telemetry/domain"
	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// SensorStatusRepository tracks per-sensor liveness in Postgres.
type SensorStatusRepository struct {
	db *sql.DB
}

// NewSensorStatusRepository constructs a repository.
func NewSensorStatusRepository(db *sql.DB) *SensorStatusRepository {
	return &SensorStatusRepository{db: db}
}

// Touch records that a sensor reported at seenAt. A late-arriving batch
// never moves last_seen_at backwards.
func (r *SensorStatusRepository) Touch(ctx context.Context, sensorID, locationID string, zoneKind thresholds.ZoneKind, seenAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("sensor status repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sensor_status (sensor_id, location_id, zone_kind, last_seen_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (sensor_id) DO UPDATE SET
	location_id = EXCLUDED.location_id,
	zone_kind = EXCLUDED.zone_kind,
	last_seen_at = GREATEST(sensor_status.last_seen_at, EXCLUDED.last_seen_at)`,
		sensorID, locationID, string(zoneKind), seenAt.UTC())
	return err
}

// List returns the liveness state of every known sensor.
func (r *SensorStatusRepository) List(ctx context.Context) ([]telemetry.SensorStatus, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sensor status repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT sensor_id, location_id, zone_kind, last_seen_at
FROM sensor_status
ORDER BY sensor_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.SensorStatus
	for rows.Next() {
		var status telemetry.SensorStatus
		var zoneKind string
		if err := rows.Scan(&status.SensorID, &status.LocationID, &zoneKind, &status.LastSeenAt); err != nil {
			return nil, err
		}
		status.ZoneKind = thresholds.ZoneKind(zoneKind)
		status.LastSeenAt = status.LastSeenAt.UTC()
		out = append(out, status)
	}
	return out, rows.Err()
}

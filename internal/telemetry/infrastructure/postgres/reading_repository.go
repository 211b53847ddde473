package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	telemetry "github.com/getevidly/evidly-app-sub001/internal/telemetry/domain"
	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// ReadingRepository is a Postgres repository for sensor readings.
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// InsertReadings upserts readings. Duplicate (sensor, ts) pairs from
// gateway retries overwrite in place rather than erroring.
func (r *ReadingRepository) InsertReadings(ctx context.Context, readings []telemetry.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO sensor_readings (
	sensor_id, location_id, zone_kind, ts,
	temperature_f, humidity_pct, defrost_cycle
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (sensor_id, ts) DO UPDATE SET
	temperature_f = EXCLUDED.temperature_f,
	humidity_pct = EXCLUDED.humidity_pct,
	defrost_cycle = EXCLUDED.defrost_cycle`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, reading := range readings {
		var humidity sql.NullFloat64
		if reading.HumidityPct != nil {
			humidity = sql.NullFloat64{Float64: *reading.HumidityPct, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			reading.SensorID,
			reading.LocationID,
			string(reading.ZoneKind),
			reading.TS.UTC(),
			reading.TemperatureF,
			humidity,
			reading.DefrostCycle,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// QueryWindow returns readings for a location in [start, end).
func (r *ReadingRepository) QueryWindow(ctx context.Context, locationID string, start, end time.Time) ([]telemetry.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT sensor_id, location_id, zone_kind, ts, temperature_f, humidity_pct, defrost_cycle
FROM sensor_readings
WHERE location_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts ASC`,
		locationID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.Reading
	for rows.Next() {
		var reading telemetry.Reading
		var zoneKind string
		var humidity sql.NullFloat64
		if err := rows.Scan(
			&reading.SensorID,
			&reading.LocationID,
			&zoneKind,
			&reading.TS,
			&reading.TemperatureF,
			&humidity,
			&reading.DefrostCycle,
		); err != nil {
			return nil, err
		}
		reading.ZoneKind = thresholds.ZoneKind(zoneKind)
		reading.TS = reading.TS.UTC()
		if humidity.Valid {
			value := humidity.Float64
			reading.HumidityPct = &value
		}
		out = append(out, reading)
	}
	return out, rows.Err()
}

package incidents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore persists incident records in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the incident id recorded for (alertID, stage).
func (s *PostgresStore) Get(ctx context.Context, alertID, stage string) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("incidents store: nil db")
	}
	var incidentID string
	err := s.db.QueryRowContext(ctx, `
SELECT incident_id
FROM incident_records
WHERE alert_id = $1 AND stage = $2`, alertID, stage).Scan(&incidentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotRecorded
	}
	if err != nil {
		return "", err
	}
	return incidentID, nil
}

// Record stores the incident id for (alertID, stage). A concurrent
// duplicate insert loses quietly; both writers recorded the same remote
// incident.
func (s *PostgresStore) Record(ctx context.Context, alertID, stage, incidentID string, at time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("incidents store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO incident_records (alert_id, stage, incident_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (alert_id, stage) DO NOTHING`,
		alertID, stage, incidentID, at.UTC())
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
)

const alertColumns = `id, sensor_id, location_id, violation_kind, severity, status,
	opened_at, last_seen_at, last_value, escalation_stage, in_range_since,
	acknowledged_at, acknowledged_by, resolved_at, resolved_by, critical_override,
	created_at, updated_at`

// AlertRepository is a Postgres repository for alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if alert.ID == "" || alert.SensorID == "" || alert.ViolationKind == "" {
		return errors.New("alert repo: missing fields")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alerts (
	id, sensor_id, location_id, violation_kind, severity, status,
	opened_at, last_seen_at, last_value, escalation_stage, in_range_since,
	acknowledged_at, acknowledged_by, resolved_at, resolved_by, critical_override,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10, $11,
	$12, $13, $14, $15, $16,
	$17, $18
)`,
		alert.ID,
		alert.SensorID,
		alert.LocationID,
		string(alert.ViolationKind),
		string(alert.Severity),
		alert.Status,
		alert.OpenedAt,
		alert.LastSeenAt,
		alert.LastValue,
		alert.EscalationStage,
		nullableTime(alert.InRangeSince),
		nullableTime(alert.AcknowledgedAt),
		alert.AcknowledgedBy,
		nullableTime(alert.ResolvedAt),
		alert.ResolvedBy,
		alert.CriticalOverride,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	return err
}

// Update overwrites an existing alert row.
func (r *AlertRepository) Update(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil || alert.ID == "" {
		return errors.New("alert repo: nil alert")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET severity = $1, status = $2, last_seen_at = $3, last_value = $4,
	escalation_stage = $5, in_range_since = $6,
	acknowledged_at = $7, acknowledged_by = $8,
	resolved_at = $9, resolved_by = $10, critical_override = $11, updated_at = $12
WHERE id = $13`,
		string(alert.Severity),
		alert.Status,
		alert.LastSeenAt,
		alert.LastValue,
		alert.EscalationStage,
		nullableTime(alert.InRangeSince),
		nullableTime(alert.AcknowledgedAt),
		alert.AcknowledgedBy,
		nullableTime(alert.ResolvedAt),
		alert.ResolvedBy,
		alert.CriticalOverride,
		alert.UpdatedAt,
		alert.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return alerts.ErrNotFound
	}
	return err
}

// GetByID fetches an alert by id, nil when absent.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE id = $1`, id)
	return scanAlert(row)
}

// FindOpenByKey returns the open alert for a (sensor, violation kind) key.
func (r *AlertRepository) FindOpenByKey(ctx context.Context, key string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	sensorID, kind, ok := splitKey(key)
	if !ok {
		return nil, errors.New("alert repo: invalid key")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE sensor_id = $1 AND violation_kind = $2 AND status IN ('active', 'acknowledged')
ORDER BY created_at DESC
LIMIT 1`, sensorID, kind)
	return scanAlert(row)
}

// ListOpen returns open alerts matching the filter.
func (r *AlertRepository) ListOpen(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := `
SELECT ` + alertColumns + `
FROM alerts
WHERE status IN ('active', 'acknowledged')`
	var args []any
	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		query += ` AND location_id = $` + strconv.Itoa(len(args))
	}
	if filter.SensorID != "" {
		args = append(args, filter.SensorID)
		query += ` AND sensor_id = $` + strconv.Itoa(len(args))
	}
	if filter.ViolationKind != "" {
		args = append(args, filter.ViolationKind)
		query += ` AND violation_kind = $` + strconv.Itoa(len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += ` AND severity = $` + strconv.Itoa(len(args))
	}
	query += " ORDER BY opened_at DESC"

	return r.queryAlerts(ctx, query, args...)
}

// RecordEscalationStage stores the last escalation stage reached.
func (r *AlertRepository) RecordEscalationStage(ctx context.Context, alertID, stage string) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET escalation_stage = $1, updated_at = $2
WHERE id = $3 AND status IN ('active', 'acknowledged')`,
		stage, time.Now().UTC(), alertID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return alerts.ErrNotFound
	}
	return err
}

// ListResolvedBetween returns resolved alerts within a window.
func (r *AlertRepository) ListResolvedBetween(ctx context.Context, locationID string, from, to time.Time) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := `
SELECT ` + alertColumns + `
FROM alerts
WHERE status = 'resolved' AND resolved_at >= $1 AND resolved_at < $2`
	args := []any{from, to}
	if locationID != "" {
		args = append(args, locationID)
		query += ` AND location_id = $3`
	}
	query += " ORDER BY resolved_at DESC"
	return r.queryAlerts(ctx, query, args...)
}

func (r *AlertRepository) queryAlerts(ctx context.Context, query string, args ...any) ([]alerts.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			result = append(result, *alert)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var violationKind string
	var severity string
	var inRangeSince, acknowledgedAt, resolvedAt sql.NullTime
	var acknowledgedBy, resolvedBy sql.NullString
	if err := row.Scan(
		&alert.ID,
		&alert.SensorID,
		&alert.LocationID,
		&violationKind,
		&severity,
		&alert.Status,
		&alert.OpenedAt,
		&alert.LastSeenAt,
		&alert.LastValue,
		&alert.EscalationStage,
		&inRangeSince,
		&acknowledgedAt,
		&acknowledgedBy,
		&resolvedAt,
		&resolvedBy,
		&alert.CriticalOverride,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.ViolationKind = classify.ViolationKind(violationKind)
	alert.Severity = alerts.Severity(severity)
	alert.OpenedAt = alert.OpenedAt.UTC()
	alert.LastSeenAt = alert.LastSeenAt.UTC()
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()
	if inRangeSince.Valid {
		alert.InRangeSince = inRangeSince.Time.UTC()
	}
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = acknowledgedAt.Time.UTC()
	}
	if acknowledgedBy.Valid {
		alert.AcknowledgedBy = acknowledgedBy.String
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = resolvedAt.Time.UTC()
	}
	if resolvedBy.Valid {
		alert.ResolvedBy = resolvedBy.String
	}
	return &alert, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}

func splitKey(key string) (sensorID, kind string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return key[:i], key[i+1:], true
		}
	}
	return "", "", false
}

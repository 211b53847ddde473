package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
)

// AlertRepository is an in-memory alert store used by tests and the demo
// wiring.
type AlertRepository struct {
	mu   sync.RWMutex
	data map[string]alerts.Alert
}

// NewAlertRepository constructs a repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{data: make(map[string]alerts.Alert)}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	_ = ctx
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if alert.ID == "" {
		return errors.New("alert repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[alert.ID]; exists {
		return errors.New("alert repo: duplicate id")
	}
	r.data[alert.ID] = *alert
	return nil
}

// Update overwrites an existing alert.
func (r *AlertRepository) Update(ctx context.Context, alert *alerts.Alert) error {
	_ = ctx
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[alert.ID]; !exists {
		return alerts.ErrNotFound
	}
	r.data[alert.ID] = *alert
	return nil
}

// GetByID fetches an alert by id, nil when absent.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	alert, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	copied := alert
	return &copied, nil
}

// FindOpenByKey returns the open alert for a key, nil when none.
func (r *AlertRepository) FindOpenByKey(ctx context.Context, key string) (*alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, alert := range r.data {
		if alert.Key() == key && alert.Open() {
			copied := alert
			return &copied, nil
		}
	}
	return nil, nil
}

// ListOpen returns open alerts matching the filter.
func (r *AlertRepository) ListOpen(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []alerts.Alert
	for _, alert := range r.data {
		if !alert.Open() {
			continue
		}
		if filter.LocationID != "" && alert.LocationID != filter.LocationID {
			continue
		}
		if filter.SensorID != "" && alert.SensorID != filter.SensorID {
			continue
		}
		if filter.ViolationKind != "" && string(alert.ViolationKind) != filter.ViolationKind {
			continue
		}
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		result = append(result, alert)
	}
	return result, nil
}

// RecordEscalationStage stores the last escalation stage reached.
func (r *AlertRepository) RecordEscalationStage(ctx context.Context, alertID, stage string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.data[alertID]
	if !ok {
		return alerts.ErrNotFound
	}
	alert.EscalationStage = stage
	alert.UpdatedAt = time.Now().UTC()
	r.data[alertID] = alert
	return nil
}

// ListResolvedBetween returns resolved alerts in a window.
func (r *AlertRepository) ListResolvedBetween(ctx context.Context, locationID string, from, to time.Time) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []alerts.Alert
	for _, alert := range r.data {
		if alert.Status != alerts.StatusResolved {
			continue
		}
		if locationID != "" && alert.LocationID != locationID {
			continue
		}
		if alert.ResolvedAt.Before(from) || !alert.ResolvedAt.Before(to) {
			continue
		}
		result = append(result, alert)
	}
	return result, nil
}

package alerts

import (
	"context"
	"time"
)

// ListFilter narrows open-alert queries. Zero values match everything.
type ListFilter struct {
	LocationID    string
	SensorID      string
	ViolationKind string
	Severity      Severity
}

// Repository persists alerts.
type Repository interface {
	Create(ctx context.Context, alert *Alert) error
	Update(ctx context.Context, alert *Alert) error
	GetByID(ctx context.Context, id string) (*Alert, error)
	// FindOpenByKey returns the single open (active or acknowledged) alert
	// for a (sensor, violation kind) key, or nil.
	FindOpenByKey(ctx context.Context, key string) (*Alert, error)
	ListOpen(ctx context.Context, filter ListFilter) ([]Alert, error)
	ListResolvedBetween(ctx context.Context, locationID string, from, to time.Time) ([]Alert, error)
}

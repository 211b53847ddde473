package alerts

import (
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/classify"
)

const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

// Severity levels for an open alert. Severity is monotone non-decreasing
// while the alert stays open; only resolution resets it.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for monotonicity checks.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Alert is one open or closed alert for a (sensor, violation kind) pair.
// At most one open alert exists per pair at any time.
type Alert struct {
	ID            string                 `json:"id"`
	SensorID      string                 `json:"sensor_id"`
	LocationID    string                 `json:"location_id"`
	ViolationKind classify.ViolationKind `json:"violation_kind"`
	Severity      Severity               `json:"severity"`
	Status        string                 `json:"status"`
	OpenedAt      time.Time              `json:"opened_at"`
	// LastSeenAt is the timestamp basis of the newest classification applied
	// to this alert. Classifications older than it are discarded so a stale
	// late arrival can never downgrade state.
	LastSeenAt       time.Time `json:"last_seen_at"`
	LastValue        float64   `json:"last_value"`
	EscalationStage  string    `json:"escalation_stage,omitempty"`
	InRangeSince     time.Time `json:"in_range_since,omitempty"`
	AcknowledgedAt   time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy   string    `json:"acknowledged_by,omitempty"`
	ResolvedAt       time.Time `json:"resolved_at,omitempty"`
	ResolvedBy       string    `json:"resolved_by,omitempty"`
	CriticalOverride bool      `json:"critical_override,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Open reports whether the alert has not yet resolved. Acknowledged alerts
// are still open: classifications keep updating them, only notification
// escalation halts.
func (a Alert) Open() bool {
	return a.Status == StatusActive || a.Status == StatusAcknowledged
}

// Key is the alerting identity: one open alert per key.
func (a Alert) Key() string {
	return Key(a.SensorID, a.ViolationKind)
}

// Key builds the (sensor, violation kind) alert key.
func Key(sensorID string, kind classify.ViolationKind) string {
	return sensorID + "|" + string(kind)
}

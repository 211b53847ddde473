package application

import (
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
)

// Lifecycle event types carried in AlertEvent.Type.
const (
	EventOpened       = "opened"
	EventEscalated    = "escalated"
	EventAcknowledged = "acknowledged"
	EventResolved     = "resolved"
)

// AlertEvent is published on every alert state transition, strictly after
// the transition has been durably stored. The escalation scheduler and the
// external notification/incident collaborators consume it.
type AlertEvent struct {
	Type       string       `json:"type"`
	Alert      alerts.Alert `json:"alert"`
	LocationID string       `json:"location_id"`
	OccurredAt time.Time    `json:"occurred_at"`
}

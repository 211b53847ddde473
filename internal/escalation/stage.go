package escalation

import "time"

// Stage is one step in the time-boxed escalation chain of an open alert.
type Stage string

const (
	StageNotifyOnShift   Stage = "notify_on_shift"
	StageNotifyShiftLead Stage = "notify_shift_lead"
	StageCreateIncident  Stage = "create_incident"
	StagePageManager     Stage = "page_manager"
)

// RecipientRole names who a stage notifies.
type RecipientRole string

const (
	RoleOnShift   RecipientRole = "on_shift"
	RoleShiftLead RecipientRole = "shift_lead"
	RoleManager   RecipientRole = "manager"
)

// StageDef binds a stage to its delay from alert open.
type StageDef struct {
	Stage     Stage
	After     time.Duration
	Recipient RecipientRole
}

// Delays carries the configurable stage offsets.
type Delays struct {
	ShiftLead   time.Duration
	Incident    time.Duration
	PageManager time.Duration
}

// DefaultDelays returns the production stage timeline.
func DefaultDelays() Delays {
	return Delays{
		ShiftLead:   15 * time.Minute,
		Incident:    30 * time.Minute,
		PageManager: 60 * time.Minute,
	}
}

// Chain builds the ordered stage definitions for a set of delays. Every
// stage, incident creation included, is pending only while the alert stays
// unacknowledged and unresolved.
func Chain(delays Delays) []StageDef {
	return []StageDef{
		{Stage: StageNotifyOnShift, After: 0, Recipient: RoleOnShift},
		{Stage: StageNotifyShiftLead, After: delays.ShiftLead, Recipient: RoleShiftLead},
		{Stage: StageCreateIncident, After: delays.Incident},
		{Stage: StagePageManager, After: delays.PageManager, Recipient: RoleManager},
	}
}

package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	alertapp "github.com/getevidly/evidly-app-sub001/internal/alerts/application"
	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/escalation"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
)

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders and delivers alert notifications. It consumes alert
// lifecycle events from the bus and also serves stage deliveries for the
// escalation scheduler, routing each recipient role to its channel.
type Notifier struct {
	channel      Channel
	byRole       map[escalation.RecipientRole]Channel
	template     *Template
	clock        Clock
	cooldown     time.Duration
	dedupeWindow time.Duration

	mu   sync.Mutex
	sent map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same
// alert and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithRoleChannel routes one recipient role to a dedicated channel.
// Roles without a dedicated channel use the default one.
func WithRoleChannel(role escalation.RecipientRole, channel Channel) Option {
	return func(n *Notifier) {
		if role != "" && channel != nil {
			n.byRole[role] = channel
		}
	}
}

// NewNotifier constructs a notifier around a default channel.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, fmt.Errorf("notify: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:  channel,
		byRole:   make(map[escalation.RecipientRole]Channel),
		template: template,
		clock:    systemClock{},
		sent:     make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// HandleAlertEvent delivers a notification for an alert state transition.
// Delivery failure is returned so the bus dead-letters the event for
// replay rather than dropping it.
func (n *Notifier) HandleAlertEvent(ctx context.Context, event alertapp.AlertEvent) error {
	if n == nil || n.channel == nil {
		return nil
	}
	data := buildTemplateData(event.Type, event.Alert, "", "")
	return n.deliver(ctx, n.channel, event.Alert.ID, event.Type, data)
}

// Send implements the escalation scheduler's delivery port.
func (n *Notifier) Send(ctx context.Context, alert alerts.Alert, stage escalation.Stage, recipient escalation.RecipientRole) error {
	if n == nil {
		return fmt.Errorf("notify: nil notifier")
	}
	channel := n.channel
	if dedicated, ok := n.byRole[recipient]; ok {
		channel = dedicated
	}
	data := buildTemplateData("escalated", alert, string(stage), string(recipient))
	return n.deliver(ctx, channel, alert.ID, string(stage), data)
}

func (n *Notifier) deliver(ctx context.Context, channel Channel, alertID, eventType string, data TemplateData) error {
	content, err := n.template.Render(data)
	if err != nil {
		return err
	}
	if !n.shouldSend(alertID, eventType, content) {
		metrics.IncNotifyDelivery("deduped")
		return nil
	}
	if err := channel.Send(ctx, content); err != nil {
		metrics.IncNotifyDelivery("error")
		return err
	}
	metrics.IncNotifyDelivery("ok")
	n.markSent(alertID, eventType, content)
	return nil
}

func (n *Notifier) shouldSend(alertID, eventType, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := alertID + "|" + eventType
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(alertID, eventType, content string) {
	n.mu.Lock()
	n.sent[alertID+"|"+eventType] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func buildTemplateData(eventType string, alert alerts.Alert, stage, recipient string) TemplateData {
	return TemplateData{
		Location:   alert.LocationID,
		Sensor:     alert.SensorID,
		Violation:  violationLabel(alert.ViolationKind),
		LastValue:  fmt.Sprintf("%.1f", alert.LastValue),
		OpenedAt:   alert.OpenedAt.UTC().Format(time.RFC3339),
		Status:     alert.Status,
		Severity:   string(alert.Severity),
		Stage:      stage,
		Recipient:  recipient,
		Suggestion: suggestionFor(alert),
		Event:      eventType,
		EventLabel: eventLabel(eventType),
	}
}

func eventLabel(event string) string {
	switch event {
	case alertapp.EventOpened:
		return "Opened"
	case alertapp.EventEscalated:
		return "Escalated"
	case alertapp.EventAcknowledged:
		return "Acknowledged"
	case alertapp.EventResolved:
		return "Resolved"
	default:
		return event
	}
}

func violationLabel(kind classify.ViolationKind) string {
	switch kind {
	case classify.KindHighTemp:
		return "temperature above threshold"
	case classify.KindLowTemp:
		return "temperature below threshold"
	case classify.KindHumidity:
		return "humidity above threshold"
	case classify.KindStaleSensor:
		return "sensor stopped reporting"
	default:
		return string(kind)
	}
}

func suggestionFor(alert alerts.Alert) string {
	if alert.ViolationKind == classify.KindStaleSensor {
		return "Check sensor power and connectivity."
	}
	switch strings.TrimSpace(strings.ToLower(string(alert.Severity))) {
	case string(alerts.SeverityCritical):
		return "Move product and inspect the unit immediately."
	case string(alerts.SeverityWarning):
		return "Verify the door is sealed and recheck within the hour."
	default:
		return "Monitor the zone."
	}
}

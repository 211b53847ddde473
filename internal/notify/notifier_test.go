package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	alertapp "github.com/getevidly/evidly-app-sub001/internal/alerts/application"
	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/escalation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureChannel struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (c *captureChannel) Send(_ context.Context, content string) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	c.messages = append(c.messages, content)
	c.mu.Unlock()
	return nil
}

func (c *captureChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func testAlert() alerts.Alert {
	opened := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return alerts.Alert{
		ID:            "alert-1",
		SensorID:      "sensor-1",
		LocationID:    "loc-1",
		ViolationKind: classify.KindHighTemp,
		Severity:      alerts.SeverityWarning,
		Status:        alerts.StatusActive,
		OpenedAt:      opened,
		LastSeenAt:    opened,
		LastValue:     43.5,
	}
}

func TestHandleAlertEventRendersContent(t *testing.T) {
	channel := &captureChannel{}
	notifier, err := NewNotifier(channel, nil)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}

	event := alertapp.AlertEvent{Type: alertapp.EventOpened, Alert: testAlert(), LocationID: "loc-1"}
	if err := notifier.HandleAlertEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleAlertEvent: %v", err)
	}

	if channel.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", channel.count())
	}
	content := channel.messages[0]
	for _, want := range []string{"Opened", "loc-1", "sensor-1", "temperature above threshold", "43.5", "warning"} {
		if !strings.Contains(content, want) {
			t.Fatalf("content missing %q:\n%s", want, content)
		}
	}
}

func TestHandleAlertEventReturnsDeliveryError(t *testing.T) {
	channel := &captureChannel{err: errors.New("endpoint down")}
	notifier, err := NewNotifier(channel, nil)
	if err != nil {
		t.Fatal(err)
	}

	event := alertapp.AlertEvent{Type: alertapp.EventOpened, Alert: testAlert()}
	if err := notifier.HandleAlertEvent(context.Background(), event); err == nil {
		t.Fatal("delivery failure must surface so the event is retried")
	}
}

func TestCooldownSuppressesRepeats(t *testing.T) {
	channel := &captureChannel{}
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	notifier, err := NewNotifier(channel, nil, WithClock(clock), WithCooldown(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	event := alertapp.AlertEvent{Type: alertapp.EventOpened, Alert: testAlert()}
	if err := notifier.HandleAlertEvent(ctx, event); err != nil {
		t.Fatal(err)
	}
	if err := notifier.HandleAlertEvent(ctx, event); err != nil {
		t.Fatal(err)
	}
	if channel.count() != 1 {
		t.Fatalf("deliveries inside cooldown = %d, want 1", channel.count())
	}

	clock.Advance(6 * time.Minute)
	if err := notifier.HandleAlertEvent(ctx, event); err != nil {
		t.Fatal(err)
	}
	if channel.count() != 2 {
		t.Fatalf("deliveries after cooldown = %d, want 2", channel.count())
	}
}

func TestCooldownIsPerEventType(t *testing.T) {
	channel := &captureChannel{}
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	notifier, err := NewNotifier(channel, nil, WithClock(clock), WithCooldown(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	alert := testAlert()
	if err := notifier.HandleAlertEvent(ctx, alertapp.AlertEvent{Type: alertapp.EventOpened, Alert: alert}); err != nil {
		t.Fatal(err)
	}
	// A different transition for the same alert is not a repeat.
	escalated := alert
	escalated.Severity = alerts.SeverityCritical
	if err := notifier.HandleAlertEvent(ctx, alertapp.AlertEvent{Type: alertapp.EventEscalated, Alert: escalated}); err != nil {
		t.Fatal(err)
	}
	if channel.count() != 2 {
		t.Fatalf("deliveries = %d, want 2 for two distinct transitions", channel.count())
	}
}

func TestSendRoutesRecipientRole(t *testing.T) {
	fallback := &captureChannel{}
	managers := &captureChannel{}
	notifier, err := NewNotifier(fallback, nil, WithRoleChannel(escalation.RoleManager, managers))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	alert := testAlert()

	if err := notifier.Send(ctx, alert, escalation.StageNotifyOnShift, escalation.RoleOnShift); err != nil {
		t.Fatal(err)
	}
	if err := notifier.Send(ctx, alert, escalation.StagePageManager, escalation.RoleManager); err != nil {
		t.Fatal(err)
	}

	if fallback.count() != 1 {
		t.Fatalf("fallback deliveries = %d, want 1", fallback.count())
	}
	if managers.count() != 1 {
		t.Fatalf("manager deliveries = %d, want 1", managers.count())
	}
	if !strings.Contains(managers.messages[0], "page_manager") {
		t.Fatalf("manager content missing stage:\n%s", managers.messages[0])
	}
}

func TestWebhookChannelPostsPayload(t *testing.T) {
	var received webhookPayload
	var token string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Webhook-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel := NewWebhookChannel(server.URL, "hook-secret")
	if err := channel.Send(context.Background(), "freezer over temp"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if received.MsgType != "text" || received.Text.Content != "freezer over temp" {
		t.Fatalf("payload = %+v", received)
	}
	if token != "hook-secret" {
		t.Fatalf("token header = %q", token)
	}
}

func TestWebhookChannelNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel := NewWebhookChannel(server.URL, "")
	if err := channel.Send(context.Background(), "x"); err == nil {
		t.Fatal("Send accepted a 502 response")
	}
}

func TestMultiChannelFanOut(t *testing.T) {
	a := &captureChannel{}
	b := &captureChannel{err: errors.New("b down")}
	c := &captureChannel{}
	multi := NewMultiChannel(a, b, c)

	err := multi.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("fan-out must report the failed channel")
	}
	if a.count() != 1 || c.count() != 1 {
		t.Fatal("healthy channels must still receive the content")
	}
}

func TestSuggestionVariesWithSeverity(t *testing.T) {
	alert := testAlert()
	alert.Severity = alerts.SeverityCritical
	if got := suggestionFor(alert); !strings.Contains(got, "immediately") {
		t.Fatalf("critical suggestion = %q", got)
	}
	alert.ViolationKind = classify.KindStaleSensor
	if got := suggestionFor(alert); !strings.Contains(got, "connectivity") {
		t.Fatalf("stale suggestion = %q", got)
	}
}

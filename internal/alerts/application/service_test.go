package application

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	alertmemory "github.com/getevidly/evidly-app-sub001/internal/alerts/infrastructure/memory"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
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

type capturePublisher struct {
	mu     sync.Mutex
	events []AlertEvent
}

func (p *capturePublisher) Publish(_ context.Context, event any) error {
	evt, ok := event.(AlertEvent)
	if !ok {
		return errors.New("unexpected event type")
	}
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		types = append(types, evt.Type)
	}
	return types
}

func newTestService(t *testing.T) (*Service, *alertmemory.AlertRepository, *capturePublisher, *fakeClock) {
	t.Helper()
	repo := alertmemory.NewAlertRepository()
	publisher := &capturePublisher{}
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(repo, publisher, log.New(os.Stderr, "", 0), WithClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, publisher, clock
}

func classified(sensorID string, cond classify.Condition, kind classify.ViolationKind, ts time.Time) classify.ReadingClassified {
	return classify.ReadingClassified{
		SensorID:   sensorID,
		LocationID: "loc-1",
		TS:         ts,
		Condition:  cond,
		Kind:       kind,
		OccurredAt: ts,
	}
}

func mustOpen(t *testing.T, repo *alertmemory.AlertRepository, sensorID string, kind classify.ViolationKind) *alerts.Alert {
	t.Helper()
	alert, err := repo.FindOpenByKey(context.Background(), alerts.Key(sensorID, kind))
	if err != nil {
		t.Fatalf("FindOpenByKey: %v", err)
	}
	if alert == nil {
		t.Fatalf("no open alert for %s/%s", sensorID, kind)
	}
	return alert
}

func TestViolationOpensWarningAlert(t *testing.T) {
	svc, repo, publisher, clock := newTestService(t)
	ctx := context.Background()

	evt := classified("sensor-1", classify.CondViolation, classify.KindHighTemp, clock.Now())
	if err := svc.HandleReadingClassified(ctx, evt); err != nil {
		t.Fatalf("HandleReadingClassified: %v", err)
	}

	alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)
	if alert.Severity != alerts.SeverityWarning {
		t.Fatalf("first violation severity = %s, want warning", alert.Severity)
	}
	if alert.Status != alerts.StatusActive {
		t.Fatalf("status = %s, want active", alert.Status)
	}
	if got := publisher.Types(); len(got) != 1 || got[0] != EventOpened {
		t.Fatalf("events = %v, want [opened]", got)
	}
}

func TestRepeatViolationEscalatesToCritical(t *testing.T) {
	svc, repo, publisher, clock := newTestService(t)
	ctx := context.Background()

	base := clock.Now()
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base)); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)
	if alert.Severity != alerts.SeverityCritical {
		t.Fatalf("severity after repeat violation = %s, want critical", alert.Severity)
	}
	if got := publisher.Types(); len(got) != 2 || got[1] != EventEscalated {
		t.Fatalf("events = %v, want [opened escalated]", got)
	}
}

func TestCriticalOverrideOpensCritical(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	evt := classified("sensor-1", classify.CondViolation, classify.KindHighTemp, clock.Now())
	evt.CriticalOverride = true
	if err := svc.HandleReadingClassified(ctx, evt); err != nil {
		t.Fatal(err)
	}

	alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)
	if alert.Severity != alerts.SeverityCritical || !alert.CriticalOverride {
		t.Fatalf("alert = %+v, want critical with override", alert)
	}
}

func TestSeverityNeverDowngrades(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	base := clock.Now()
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base)); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	// A follow-up warning must not reduce a critical alert.
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondWarning, classify.KindHighTemp, base.Add(2*time.Minute))); err != nil {
		t.Fatal(err)
	}

	alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)
	if alert.Severity != alerts.SeverityCritical {
		t.Fatalf("severity = %s, want critical after downgrade attempt", alert.Severity)
	}
}

func TestWarningEscalatesAfterConfiguredWindow(t *testing.T) {
	repo := alertmemory.NewAlertRepository()
	publisher := &capturePublisher{}
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(repo, publisher, log.New(os.Stderr, "", 0),
		WithClock(clock),
		WithConfig(Config{WarningEscalateAfter: 20 * time.Minute}),
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	base := clock.Now()
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondWarning, classify.KindHighTemp, base)); err != nil {
		t.Fatal(err)
	}
	// Warnings inside the window stay warnings.
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondWarning, classify.KindHighTemp, base.Add(10*time.Minute))); err != nil {
		t.Fatal(err)
	}
	if alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp); alert.Severity != alerts.SeverityWarning {
		t.Fatalf("severity at 10m = %s, want warning", alert.Severity)
	}

	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondWarning, classify.KindHighTemp, base.Add(21*time.Minute))); err != nil {
		t.Fatal(err)
	}
	if alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp); alert.Severity != alerts.SeverityCritical {
		t.Fatalf("severity at 21m = %s, want critical", alert.Severity)
	}
}

func TestOutOfOrderClassificationDiscarded(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	base := clock.Now()
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base)); err != nil {
		t.Fatal(err)
	}
	evt := classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base.Add(5*time.Minute))
	evt.TemperatureF = 48
	if err := svc.HandleReadingClassified(ctx, evt); err != nil {
		t.Fatal(err)
	}

	// A late arrival with an older timestamp must not refresh the alert.
	stale := classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base.Add(time.Minute))
	stale.TemperatureF = 99
	if err := svc.HandleReadingClassified(ctx, stale); err != nil {
		t.Fatal(err)
	}

	alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)
	if alert.LastValue != 48 {
		t.Fatalf("last value = %v, want 48 (stale arrival applied)", alert.LastValue)
	}
	if !alert.LastSeenAt.Equal(base.Add(5 * time.Minute)) {
		t.Fatalf("last seen = %v, want %v", alert.LastSeenAt, base.Add(5*time.Minute))
	}
}

func TestSingleOpenAlertPerKeyUnderConcurrency(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	base := clock.Now()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			evt := classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base.Add(time.Duration(offset)*time.Second))
			if err := svc.HandleReadingClassified(ctx, evt); err != nil {
				t.Errorf("HandleReadingClassified: %v", err)
			}
		}(i)
	}
	wg.Wait()

	open, err := repo.ListOpen(ctx, alerts.ListFilter{SensorID: "sensor-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want exactly 1", len(open))
	}
}

func TestInRangeResolvesAfterSustainWindow(t *testing.T) {
	repo := alertmemory.NewAlertRepository()
	publisher := &capturePublisher{}
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(repo, publisher, log.New(os.Stderr, "", 0),
		WithClock(clock),
		WithConfig(Config{ResolveSustainWindow: 10 * time.Minute}),
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	base := clock.Now()
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base)); err != nil {
		t.Fatal(err)
	}

	// First recovery starts the in-range streak but does not resolve.
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondInRange, "", base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	if alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp); alert.Status != alerts.StatusActive {
		t.Fatalf("status after first recovery = %s, want active", alert.Status)
	}

	// A breach in the middle resets the streak.
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base.Add(5*time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondInRange, "", base.Add(6*time.Minute))); err != nil {
		t.Fatal(err)
	}
	// Eleven minutes after the original recovery would have crossed the
	// window, but the streak restarted at 6m.
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondInRange, "", base.Add(12*time.Minute))); err != nil {
		t.Fatal(err)
	}
	if alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp); alert.Status != alerts.StatusActive {
		t.Fatalf("status before sustained window = %s, want active", alert.Status)
	}

	// At 16m the streak that restarted at 6m reaches the full window.
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondInRange, "", base.Add(16*time.Minute))); err != nil {
		t.Fatal(err)
	}
	open, err := repo.FindOpenByKey(ctx, alerts.Key("sensor-1", classify.KindHighTemp))
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Fatalf("alert still open after sustained recovery: %+v", open)
	}

	types := publisher.Types()
	if types[len(types)-1] != EventResolved {
		t.Fatalf("events = %v, want resolved last", types)
	}
}

func TestAcknowledgeHaltsNothingButMarksAlert(t *testing.T) {
	svc, repo, publisher, clock := newTestService(t)
	ctx := context.Background()

	base := clock.Now()
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base)); err != nil {
		t.Fatal(err)
	}
	alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)

	acked, err := svc.Acknowledge(ctx, alert.ID, "lead@example.com")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if acked.Status != alerts.StatusAcknowledged || acked.AcknowledgedBy != "lead@example.com" {
		t.Fatalf("acked = %+v", acked)
	}

	// Acknowledge is idempotent.
	again, err := svc.Acknowledge(ctx, alert.ID, "lead@example.com")
	if err != nil {
		t.Fatalf("second Acknowledge: %v", err)
	}
	if !again.AcknowledgedAt.Equal(acked.AcknowledgedAt) {
		t.Fatal("second acknowledge changed the timestamp")
	}

	// Classifications keep updating an acknowledged alert.
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	updated := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)
	if updated.Severity != alerts.SeverityCritical {
		t.Fatalf("acknowledged alert severity = %s, want critical after repeat violation", updated.Severity)
	}

	types := publisher.Types()
	found := false
	for _, eventType := range types {
		if eventType == EventAcknowledged {
			found = true
		}
	}
	if !found {
		t.Fatalf("events = %v, want acknowledged present", types)
	}
}

func TestResolveManually(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, clock.Now())); err != nil {
		t.Fatal(err)
	}
	alert := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)

	resolved, err := svc.Resolve(ctx, alert.ID, "manager@example.com")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != alerts.StatusResolved || resolved.ResolvedBy != "manager@example.com" {
		t.Fatalf("resolved = %+v", resolved)
	}

	if _, err := svc.Resolve(ctx, alert.ID, "manager@example.com"); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("second resolve err = %v, want ErrNotFound", err)
	}

	// A new violation after resolution opens a fresh alert.
	if err := svc.HandleReadingClassified(ctx, classified("sensor-1", classify.CondViolation, classify.KindHighTemp, clock.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	fresh := mustOpen(t, repo, "sensor-1", classify.KindHighTemp)
	if fresh.ID == alert.ID {
		t.Fatal("new violation reused the resolved alert")
	}
	if fresh.Severity != alerts.SeverityWarning {
		t.Fatalf("fresh alert severity = %s, want warning", fresh.Severity)
	}
}

func TestStaleOpensStaleSensorAlert(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	evt := classify.ReadingClassified{
		SensorID:   "sensor-1",
		LocationID: "loc-1",
		TS:         clock.Now(),
		Condition:  classify.CondStale,
		Kind:       classify.KindStaleSensor,
		OccurredAt: clock.Now(),
	}
	if err := svc.HandleReadingClassified(ctx, evt); err != nil {
		t.Fatal(err)
	}
	alert := mustOpen(t, repo, "sensor-1", classify.KindStaleSensor)
	if alert.ViolationKind != classify.KindStaleSensor {
		t.Fatalf("kind = %s, want stale_sensor", alert.ViolationKind)
	}

	// Repeated sweeps update the existing alert instead of opening more.
	evt.TS = clock.Now().Add(time.Minute)
	if err := svc.HandleReadingClassified(ctx, evt); err != nil {
		t.Fatal(err)
	}
	open, err := repo.ListOpen(ctx, alerts.ListFilter{SensorID: "sensor-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(open))
	}
}

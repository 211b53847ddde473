package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
)

// Publisher publishes alert lifecycle events. The production wiring backs
// this with the outbox so emission happens after the state mutation is
// durable.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Config carries the tunable lifecycle durations. The sustain windows are
// deliberately configuration, not constants.
type Config struct {
	// WarningEscalateAfter promotes a still-warning alert to critical once
	// it has been open this long.
	WarningEscalateAfter time.Duration
	// ResolveSustainWindow is how long classifications must stay in range
	// before an open alert auto-resolves. Guards against flapping on a
	// single borderline reading.
	ResolveSustainWindow time.Duration
}

// DefaultConfig returns the lifecycle defaults.
func DefaultConfig() Config {
	return Config{
		WarningEscalateAfter: 20 * time.Minute,
		ResolveSustainWindow: 10 * time.Minute,
	}
}

// Service owns the set of open alerts and their lifecycle transitions.
// Updates for the same (sensor, violation kind) key are serialized through a
// per-key lock; different keys proceed concurrently.
type Service struct {
	repo      alerts.Repository
	publisher Publisher
	clock     Clock
	cfg       Config
	logger    *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithConfig overrides lifecycle durations.
func WithConfig(cfg Config) ServiceOption {
	return func(s *Service) {
		if cfg.WarningEscalateAfter > 0 {
			s.cfg.WarningEscalateAfter = cfg.WarningEscalateAfter
		}
		if cfg.ResolveSustainWindow > 0 {
			s.cfg.ResolveSustainWindow = cfg.ResolveSustainWindow
		}
	}
}

// NewService constructs the alert lifecycle service.
func NewService(repo alerts.Repository, publisher Publisher, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("alerts: nil repository")
	}
	if publisher == nil {
		return nil, errors.New("alerts: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		repo:      repo,
		publisher: publisher,
		clock:     systemClock{},
		cfg:       DefaultConfig(),
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// HandleReadingClassified applies one classification to the alert state for
// its (sensor, violation kind) key.
func (s *Service) HandleReadingClassified(ctx context.Context, evt classify.ReadingClassified) error {
	if s == nil {
		return errors.New("alerts: nil service")
	}
	if evt.SensorID == "" {
		return errors.New("alerts: classification missing sensor id")
	}

	switch evt.Condition {
	case classify.CondInRange:
		return s.handleInRange(ctx, evt)
	case classify.CondWarning, classify.CondViolation:
		return s.handleBreach(ctx, evt)
	case classify.CondStale:
		breach := evt
		breach.Kind = classify.KindStaleSensor
		return s.handleBreach(ctx, breach)
	default:
		return errors.New("alerts: unknown condition")
	}
}

func (s *Service) handleBreach(ctx context.Context, evt classify.ReadingClassified) error {
	key := alerts.Key(evt.SensorID, evt.Kind)
	unlock := s.lockKey(key)
	defer unlock()

	open, err := s.repo.FindOpenByKey(ctx, key)
	if err != nil {
		return err
	}

	at := s.atOrNow(evt.TS)

	if open == nil {
		return s.openAlert(ctx, evt, at)
	}

	// Discard out-of-order arrivals: a reading older than the applied basis
	// must never downgrade or refresh state.
	if at.Before(open.LastSeenAt) {
		return nil
	}

	previous := open.Severity
	open.LastSeenAt = at
	open.LastValue = evt.TemperatureF
	open.InRangeSince = time.Time{}
	if evt.CriticalOverride {
		open.CriticalOverride = true
	}

	next := previous
	if evt.Condition == classify.CondViolation && previous.Rank() < alerts.SeverityCritical.Rank() {
		// A repeat violation on an already-open alert marks a sustained
		// breach and promotes to critical.
		next = alerts.SeverityCritical
	}
	if evt.CriticalOverride {
		next = alerts.SeverityCritical
	}
	if s.cfg.WarningEscalateAfter > 0 && next.Rank() < alerts.SeverityCritical.Rank() &&
		at.Sub(open.OpenedAt) >= s.cfg.WarningEscalateAfter {
		next = alerts.SeverityCritical
	}
	if next.Rank() > previous.Rank() {
		open.Severity = next
	}
	open.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, open); err != nil {
		return err
	}
	if open.Severity.Rank() > previous.Rank() {
		s.publish(ctx, EventEscalated, *open)
	}
	return nil
}

func (s *Service) openAlert(ctx context.Context, evt classify.ReadingClassified, at time.Time) error {
	severity := alerts.SeverityWarning
	if evt.CriticalOverride {
		severity = alerts.SeverityCritical
	}
	now := s.clock.Now().UTC()
	alert := &alerts.Alert{
		ID:               buildAlertID(evt.SensorID, evt.Kind, at),
		SensorID:         evt.SensorID,
		LocationID:       evt.LocationID,
		ViolationKind:    evt.Kind,
		Severity:         severity,
		Status:           alerts.StatusActive,
		OpenedAt:         at,
		LastSeenAt:       at,
		LastValue:        evt.TemperatureF,
		CriticalOverride: evt.CriticalOverride,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return err
	}
	s.publish(ctx, EventOpened, *alert)
	return nil
}

func (s *Service) handleInRange(ctx context.Context, evt classify.ReadingClassified) error {
	// An in-range reading is a recovery signal for every temperature and
	// humidity alert on the sensor, and a liveness signal for a stale
	// alert.
	kinds := []classify.ViolationKind{
		classify.KindHighTemp,
		classify.KindLowTemp,
		classify.KindHumidity,
		classify.KindStaleSensor,
	}
	for _, kind := range kinds {
		if err := s.recordRecovery(ctx, evt, kind); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recordRecovery(ctx context.Context, evt classify.ReadingClassified, kind classify.ViolationKind) error {
	key := alerts.Key(evt.SensorID, kind)
	unlock := s.lockKey(key)
	defer unlock()

	open, err := s.repo.FindOpenByKey(ctx, key)
	if err != nil {
		return err
	}
	if open == nil {
		return nil
	}

	at := s.atOrNow(evt.TS)
	if at.Before(open.LastSeenAt) {
		return nil
	}

	open.LastSeenAt = at
	open.LastValue = evt.TemperatureF
	if open.InRangeSince.IsZero() {
		open.InRangeSince = at
	}
	open.UpdatedAt = s.clock.Now().UTC()

	if s.cfg.ResolveSustainWindow > 0 && at.Sub(open.InRangeSince) >= s.cfg.ResolveSustainWindow {
		return s.resolveLocked(ctx, open, "system", at)
	}
	return s.repo.Update(ctx, open)
}

// Acknowledge marks an alert acknowledged by an operator. Acknowledging
// halts notification escalation but classifications keep updating the alert.
func (s *Service) Acknowledge(ctx context.Context, id, actor string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil || !alert.Open() {
		return nil, alerts.ErrNotFound
	}

	unlock := s.lockKey(alert.Key())
	defer unlock()

	// Re-read under the key lock: a classification may have advanced the
	// alert between the lookup and the lock.
	alert, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil || !alert.Open() {
		return nil, alerts.ErrNotFound
	}
	if alert.Status == alerts.StatusAcknowledged {
		return alert, nil
	}
	now := s.clock.Now().UTC()
	alert.Status = alerts.StatusAcknowledged
	alert.AcknowledgedAt = now
	alert.AcknowledgedBy = actor
	alert.UpdatedAt = now
	if err := s.repo.Update(ctx, alert); err != nil {
		return nil, err
	}
	s.publish(ctx, EventAcknowledged, *alert)
	return alert, nil
}

// Resolve closes an alert manually.
func (s *Service) Resolve(ctx context.Context, id, actor string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil || !alert.Open() {
		return nil, alerts.ErrNotFound
	}

	unlock := s.lockKey(alert.Key())
	defer unlock()

	alert, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil || !alert.Open() {
		return nil, alerts.ErrNotFound
	}
	if err := s.resolveLocked(ctx, alert, actor, s.clock.Now().UTC()); err != nil {
		return nil, err
	}
	return alert, nil
}

// ListOpen returns open alerts matching the filter.
func (s *Service) ListOpen(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	return s.repo.ListOpen(ctx, filter)
}

func (s *Service) resolveLocked(ctx context.Context, alert *alerts.Alert, actor string, at time.Time) error {
	alert.Status = alerts.StatusResolved
	alert.ResolvedAt = at
	alert.ResolvedBy = actor
	alert.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, alert); err != nil {
		return err
	}
	s.publish(ctx, EventResolved, *alert)
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, alert alerts.Alert) {
	metrics.IncAlertEvent(eventType)
	event := AlertEvent{
		Type:       eventType,
		Alert:      alert,
		LocationID: alert.LocationID,
		OccurredAt: s.clock.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Printf("alerts: publish %s event for %s: %v", eventType, alert.ID, err)
	}
}

func (s *Service) lockKey(key string) func() {
	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (s *Service) atOrNow(value time.Time) time.Time {
	if value.IsZero() {
		return s.clock.Now().UTC()
	}
	return value.UTC()
}

func buildAlertID(sensorID string, kind classify.ViolationKind, openedAt time.Time) string {
	sum := sha1.Sum([]byte(sensorID + "|" + string(kind) + "|" + openedAt.Format(time.RFC3339Nano)))
	return "alert-" + hex.EncodeToString(sum[:8])
}

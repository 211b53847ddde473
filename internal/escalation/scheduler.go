package escalation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	alertapp "github.com/getevidly/evidly-app-sub001/internal/alerts/application"
	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/eventing/eventbus"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
)

// AlertReader loads the current alert state for fire-time precondition
// checks.
type AlertReader interface {
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
}

// StageRecorder persists the last escalation stage reached by an alert.
type StageRecorder interface {
	RecordEscalationStage(ctx context.Context, alertID, stage string) error
}

// Notifier delivers a stage notification to a recipient role. Delivery
// failure is the transport's problem to retry; the scheduler only decides
// when.
type Notifier interface {
	Send(ctx context.Context, alert alerts.Alert, stage Stage, recipient RecipientRole) error
}

// IncidentCreator opens an incident record in the external incident system.
type IncidentCreator interface {
	CreateIncident(ctx context.Context, alert alerts.Alert, stage Stage) (string, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Timer is a cancellable delayed task.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules f after d. Production uses time.AfterFunc; tests
// inject a manual factory to drive stages deterministically.
type TimerFactory func(d time.Duration, f func()) Timer

func realTimerFactory(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type alertSchedule struct {
	alertID string
	timers  map[Stage]Timer
	fired   map[Stage]bool
}

// Scheduler owns one stage-timer chain per open alert. Stages fire in order
// and at most once each; acknowledging or resolving cancels pending stages,
// and every stage re-validates the alert state immediately before acting so
// a stage can never fire after resolution.
type Scheduler struct {
	reader    AlertReader
	recorder  StageRecorder
	notifier  Notifier
	incidents IncidentCreator
	chain     []StageDef
	clock     Clock
	newTimer  TimerFactory
	timeout   time.Duration
	logger    *log.Logger

	mu        sync.Mutex
	schedules map[string]*alertSchedule
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTimerFactory overrides timer creation.
func WithTimerFactory(factory TimerFactory) Option {
	return func(s *Scheduler) {
		if factory != nil {
			s.newTimer = factory
		}
	}
}

// WithDelays overrides the stage timeline.
func WithDelays(delays Delays) Option {
	return func(s *Scheduler) {
		s.chain = Chain(delays)
	}
}

// WithRequestTimeout bounds fire-time side effects.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewScheduler constructs an escalation scheduler.
func NewScheduler(reader AlertReader, recorder StageRecorder, notifier Notifier, incidents IncidentCreator, logger *log.Logger, opts ...Option) (*Scheduler, error) {
	if reader == nil {
		return nil, errors.New("escalation: nil alert reader")
	}
	if notifier == nil {
		return nil, errors.New("escalation: nil notifier")
	}
	if incidents == nil {
		return nil, errors.New("escalation: nil incident creator")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Scheduler{
		reader:    reader,
		recorder:  recorder,
		notifier:  notifier,
		incidents: incidents,
		chain:     Chain(DefaultDelays()),
		clock:     systemClock{},
		newTimer:  realTimerFactory,
		timeout:   5 * time.Second,
		logger:    logger,
		schedules: make(map[string]*alertSchedule),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleAlertEvent consumes alert lifecycle events from the bus.
func (s *Scheduler) HandleAlertEvent(ctx context.Context, event any) error {
	evt, ok := event.(alertapp.AlertEvent)
	if !ok {
		return eventbus.ErrInvalidEventType
	}
	switch evt.Type {
	case alertapp.EventOpened:
		s.scheduleChain(evt.Alert)
		if evt.Alert.CriticalOverride {
			s.shortCircuit(evt.Alert.ID)
		}
	case alertapp.EventEscalated:
		if evt.Alert.CriticalOverride {
			s.shortCircuit(evt.Alert.ID)
		}
	case alertapp.EventAcknowledged, alertapp.EventResolved:
		// Acknowledging and resolving both cancel the whole remaining chain,
		// incident creation included.
		s.Cancel(evt.Alert.ID)
	}
	_ = ctx
	return nil
}

// Cancel stops every pending stage for an alert. Fast path for resolution;
// the fire-time precondition check is the backstop for races.
func (s *Scheduler) Cancel(alertID string) {
	if s == nil || alertID == "" {
		return
	}
	s.mu.Lock()
	schedule := s.schedules[alertID]
	delete(s.schedules, alertID)
	s.mu.Unlock()
	if schedule == nil {
		return
	}
	for _, timer := range schedule.timers {
		if timer != nil {
			timer.Stop()
		}
	}
}

// Close cancels all pending stages for all alerts.
func (s *Scheduler) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	schedules := s.schedules
	s.schedules = make(map[string]*alertSchedule)
	s.mu.Unlock()
	for _, schedule := range schedules {
		for _, timer := range schedule.timers {
			if timer != nil {
				timer.Stop()
			}
		}
	}
}

func (s *Scheduler) scheduleChain(alert alerts.Alert) {
	if alert.ID == "" {
		return
	}
	s.mu.Lock()
	if _, exists := s.schedules[alert.ID]; exists {
		// Re-entrant open event for an alert already scheduled; stages must
		// not re-trigger.
		s.mu.Unlock()
		return
	}
	schedule := &alertSchedule{
		alertID: alert.ID,
		timers:  make(map[Stage]Timer),
		fired:   make(map[Stage]bool),
	}
	s.schedules[alert.ID] = schedule

	now := s.clock.Now().UTC()
	for _, def := range s.chain {
		remaining := alert.OpenedAt.Add(def.After).Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		def := def
		schedule.timers[def.Stage] = s.newTimer(remaining, func() {
			s.runStage(alert.ID, def)
		})
	}
	s.mu.Unlock()
}

// shortCircuit fires the manager page immediately, superseding the earlier
// notification stages.
func (s *Scheduler) shortCircuit(alertID string) {
	var pageDef *StageDef
	for i := range s.chain {
		if s.chain[i].Stage == StagePageManager {
			pageDef = &s.chain[i]
		}
	}
	if pageDef == nil {
		return
	}

	s.mu.Lock()
	schedule := s.schedules[alertID]
	if schedule == nil {
		s.mu.Unlock()
		return
	}
	for _, def := range s.chain {
		if def.Stage == StageCreateIncident || def.Stage == StagePageManager {
			continue
		}
		if timer := schedule.timers[def.Stage]; timer != nil {
			timer.Stop()
			delete(schedule.timers, def.Stage)
		}
		schedule.fired[def.Stage] = true
	}
	if timer := schedule.timers[StagePageManager]; timer != nil {
		timer.Stop()
		delete(schedule.timers, StagePageManager)
	}
	s.mu.Unlock()

	s.runStage(alertID, *pageDef)
}

func (s *Scheduler) runStage(alertID string, def StageDef) {
	s.mu.Lock()
	schedule := s.schedules[alertID]
	if schedule == nil {
		s.mu.Unlock()
		metrics.IncEscalationSkipped("cancelled")
		return
	}
	if schedule.fired[def.Stage] {
		s.mu.Unlock()
		metrics.IncEscalationSkipped("already_fired")
		return
	}
	schedule.fired[def.Stage] = true
	delete(schedule.timers, def.Stage)
	if len(schedule.timers) == 0 {
		// Last stage of the chain; nothing left to cancel.
		delete(s.schedules, alertID)
	}
	s.mu.Unlock()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// Precondition re-validation is the real cancellation mechanism: the
	// alert state is checked immediately before the side effect, so a
	// resolve racing a timer wakeup wins.
	alert, err := s.reader.GetByID(ctx, alertID)
	if err != nil || alert == nil {
		metrics.IncEscalationSkipped("not_found")
		return
	}
	if !alert.Open() {
		metrics.IncEscalationSkipped("resolved")
		return
	}
	if alert.Status == alerts.StatusAcknowledged {
		metrics.IncEscalationSkipped("acknowledged")
		return
	}

	switch def.Stage {
	case StageCreateIncident:
		incidentID, err := s.incidents.CreateIncident(ctx, *alert, def.Stage)
		if err != nil {
			s.logger.Printf("escalation: create incident for alert %s: %v", alertID, err)
		} else {
			s.logger.Printf("escalation: incident %s created for alert %s", incidentID, alertID)
		}
	default:
		if err := s.notifier.Send(ctx, *alert, def.Stage, def.Recipient); err != nil {
			// The transport owns retries; the stage timeline never stalls.
			s.logger.Printf("escalation: notify %s for alert %s: %v", def.Stage, alertID, err)
		}
	}

	metrics.IncEscalationStage(string(def.Stage))
	if s.recorder != nil {
		if err := s.recorder.RecordEscalationStage(ctx, alertID, string(def.Stage)); err != nil {
			s.logger.Printf("escalation: record stage %s for alert %s: %v", def.Stage, alertID, err)
		}
	}
}

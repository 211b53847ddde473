package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
	telemetry "github.com/getevidly/evidly-app-sub001/internal/telemetry/domain"
)

// Publisher publishes stale-sensor classifications onto the event bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time and is swappable in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// StaleWatcher sweeps sensor liveness and emits a stale classification
// for sensors silent past their expected cadence. Silence is its own
// violation kind feeding the alert lifecycle, never folded into in_range.
type StaleWatcher struct {
	statuses       telemetry.SensorStatusRepository
	publisher      Publisher
	clock          Clock
	logger         *log.Logger
	defaultCadence time.Duration
	staleFactor    float64
	cadences       map[string]time.Duration
}

// WatcherOption configures a StaleWatcher.
type WatcherOption func(*StaleWatcher)

// WithClock overrides the clock, used by tests.
func WithClock(clock Clock) WatcherOption {
	return func(w *StaleWatcher) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithDefaultCadence sets the expected reporting interval for sensors
// without a per-sensor override.
func WithDefaultCadence(cadence time.Duration) WatcherOption {
	return func(w *StaleWatcher) {
		if cadence > 0 {
			w.defaultCadence = cadence
		}
	}
}

// WithStaleFactor sets the silence multiple that marks a sensor stale.
func WithStaleFactor(factor float64) WatcherOption {
	return func(w *StaleWatcher) {
		if factor > 1 {
			w.staleFactor = factor
		}
	}
}

// WithCadences sets per-sensor expected cadences.
func WithCadences(cadences map[string]time.Duration) WatcherOption {
	return func(w *StaleWatcher) {
		if cadences != nil {
			w.cadences = cadences
		}
	}
}

// NewStaleWatcher constructs a watcher.
func NewStaleWatcher(statuses telemetry.SensorStatusRepository, publisher Publisher, logger *log.Logger, opts ...WatcherOption) (*StaleWatcher, error) {
	if statuses == nil {
		return nil, errors.New("stale watcher: nil status repository")
	}
	if publisher == nil {
		return nil, errors.New("stale watcher: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	w := &StaleWatcher{
		statuses:       statuses,
		publisher:      publisher,
		clock:          systemClock{},
		logger:         logger,
		defaultCadence: 5 * time.Minute,
		staleFactor:    3,
		cadences:       make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run sweeps on the interval until ctx is done.
func (w *StaleWatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Printf("stale watcher: sweep failed: %v", err)
			}
		}
	}
}

// Sweep emits one stale classification per silent sensor. The alert
// lifecycle dedupes repeats against the already-open stale alert, so
// emitting on every sweep costs nothing and keeps LastSeenAt honest.
func (w *StaleWatcher) Sweep(ctx context.Context) error {
	statuses, err := w.statuses.List(ctx)
	if err != nil {
		return err
	}
	now := w.clock.Now().UTC()
	metrics.IncStaleSweep()

	var firstErr error
	for _, status := range statuses {
		cadence := w.defaultCadence
		if override, ok := w.cadences[status.SensorID]; ok {
			cadence = override
		}
		deadline := time.Duration(float64(cadence) * w.staleFactor)
		if now.Sub(status.LastSeenAt) <= deadline {
			continue
		}
		event := classify.ReadingClassified{
			SensorID:   status.SensorID,
			LocationID: status.LocationID,
			ZoneKind:   status.ZoneKind,
			TS:         now,
			Condition:  classify.CondStale,
			Kind:       classify.KindStaleSensor,
			OccurredAt: now,
		}
		if err := w.publisher.Publish(ctx, event); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			w.logger.Printf("stale watcher: publish for %s failed: %v", status.SensorID, err)
		}
	}
	return firstErr
}

package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

// Publisher publishes scoring events onto the event bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time and is swappable in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Recorder turns classified readings and manual check outcomes into
// pillar observations. Temperature and humidity classifications feed
// the temperature pillar; a stale sensor is an equipment problem, not a
// temperature one, so it lands in the equipment pillar.
type Recorder struct {
	store  scoring.ObservationStore
	logger *log.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(store scoring.ObservationStore, logger *log.Logger) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("scoring recorder: nil observation store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{store: store, logger: logger}, nil
}

// HandleReadingClassified appends one observation per classified sample.
func (r *Recorder) HandleReadingClassified(ctx context.Context, event classify.ReadingClassified) error {
	if r == nil || r.store == nil {
		return errors.New("scoring recorder: not initialized")
	}
	obs := scoring.Observation{
		LocationID: event.LocationID,
		Pillar:     scoring.PillarTemperature,
		Condition:  event.Condition,
		RecordedAt: event.TS.UTC(),
	}
	if event.Condition == classify.CondStale || event.Kind == classify.KindStaleSensor {
		obs.Pillar = scoring.PillarEquipment
		obs.Condition = classify.CondViolation
	}
	return r.store.Append(ctx, obs)
}

// CheckCommand is a manual check outcome submitted over HTTP.
type CheckCommand struct {
	LocationID string
	Pillar     scoring.PillarKind
	Condition  classify.Condition
	RecordedBy string
	RecordedAt time.Time
}

// RecordCheck validates and appends a manual check observation.
func (r *Recorder) RecordCheck(ctx context.Context, cmd CheckCommand) error {
	if r == nil || r.store == nil {
		return errors.New("scoring recorder: not initialized")
	}
	if cmd.LocationID == "" {
		return errors.New("scoring recorder: missing location id")
	}
	if !cmd.Pillar.Valid() {
		return scoring.ErrUnknownPillar
	}
	switch cmd.Condition {
	case classify.CondInRange, classify.CondWarning, classify.CondViolation:
	default:
		return errors.New("scoring recorder: invalid check condition")
	}
	at := cmd.RecordedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return r.store.Append(ctx, scoring.Observation{
		LocationID: cmd.LocationID,
		Pillar:     cmd.Pillar,
		Condition:  cmd.Condition,
		RecordedAt: at.UTC(),
	})
}

// Config tunes the rollup cadence and scoring knobs.
type Config struct {
	Window          time.Duration
	Interval        time.Duration
	WarningWeight   float64
	DefaultVertical string
	// Verticals maps location id to its declared industry vertical.
	Verticals map[string]string
}

func (c *Config) applyDefaults() {
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.WarningWeight <= 0 || c.WarningWeight >= 1 {
		c.WarningWeight = scoring.DefaultWarningWeight
	}
	if c.DefaultVertical == "" {
		c.DefaultVertical = scoring.VerticalBaseline
	}
}

// RollupService recomputes location scores on a fixed cadence. Each pass
// replaces the persisted overall score for the window whole rather than
// mutating counts in place.
type RollupService struct {
	store     scoring.ObservationStore
	repo      scoring.ScoreRepository
	publisher Publisher
	clock     Clock
	logger    *log.Logger
	cfg       Config
}

// RollupOption configures a RollupService.
type RollupOption func(*RollupService)

// WithClock overrides the clock, used by tests.
func WithClock(clock Clock) RollupOption {
	return func(s *RollupService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewRollupService constructs a RollupService.
func NewRollupService(store scoring.ObservationStore, repo scoring.ScoreRepository, publisher Publisher, logger *log.Logger, cfg Config, opts ...RollupOption) (*RollupService, error) {
	if store == nil {
		return nil, errors.New("scoring rollup: nil observation store")
	}
	if repo == nil {
		return nil, errors.New("scoring rollup: nil score repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	cfg.applyDefaults()
	s := &RollupService{
		store:     store,
		repo:      repo,
		publisher: publisher,
		clock:     systemClock{},
		logger:    logger,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run recomputes scores on the configured interval until ctx is done.
func (s *RollupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RollupAll(ctx); err != nil {
				s.logger.Printf("scoring rollup: pass failed: %v", err)
			}
		}
	}
}

// RollupAll recomputes the trailing-window score for every location that
// produced observations in the window.
func (s *RollupService) RollupAll(ctx context.Context) error {
	now := s.clock.Now().UTC()
	from := now.Add(-s.cfg.Window)

	locations, err := s.store.Locations(ctx, from, now)
	if err != nil {
		return err
	}
	var firstErr error
	for _, locationID := range locations {
		if _, err := s.RollupLocation(ctx, locationID, from, now); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Printf("scoring rollup: location %s: %v", locationID, err)
		}
	}
	return firstErr
}

// RollupLocation computes, persists, and announces one location's score
// for the given window.
func (s *RollupService) RollupLocation(ctx context.Context, locationID string, from, to time.Time) (*scoring.OverallScore, error) {
	started := time.Now()

	pillarScores := make([]scoring.PillarScore, 0, len(scoring.Pillars()))
	for _, pillar := range scoring.Pillars() {
		tally, err := s.store.TallyWindow(ctx, locationID, pillar, from, to)
		if err != nil {
			return nil, err
		}
		score, err := scoring.Rollup(pillar, locationID, from, to, tally, s.cfg.WarningWeight)
		if err != nil {
			return nil, err
		}
		pillarScores = append(pillarScores, score)
	}

	overall, err := scoring.Combine(locationID, s.verticalFor(locationID), from, to, pillarScores, s.clock.Now())
	if err != nil {
		if errors.Is(err, scoring.ErrNoScorablePillars) {
			return nil, nil
		}
		return nil, err
	}

	if err := s.repo.Save(ctx, overall); err != nil {
		return nil, err
	}
	metrics.ObserveRollup("ok", time.Since(started))

	if s.publisher != nil {
		event := ScoreCalculated{
			LocationID:  overall.LocationID,
			Vertical:    overall.Vertical,
			WindowStart: overall.WindowStart,
			WindowEnd:   overall.WindowEnd,
			Percent:     overall.Percent,
			OccurredAt:  overall.CalculatedAt,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Printf("scoring rollup: publish for %s failed: %v", locationID, err)
		}
	}
	return overall, nil
}

func (s *RollupService) verticalFor(locationID string) string {
	if vertical, ok := s.cfg.Verticals[locationID]; ok && vertical != "" {
		return vertical
	}
	return s.cfg.DefaultVertical
}

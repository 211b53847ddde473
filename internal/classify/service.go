package classify

import (
	"context"
	"errors"
	"log"

	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
	readingevents "github.com/getevidly/evidly-app-sub001/internal/telemetry/application/events"
	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// Publisher publishes classification events.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Service classifies incoming readings against the threshold registry and
// publishes ReadingClassified events.
type Service struct {
	registry  *thresholds.Registry
	overrides map[string]thresholds.ZoneThreshold
	publisher Publisher
	logger    *log.Logger
}

// NewService constructs a classification service. sensorOverrides maps a
// sensor id to its custom threshold; nil means registry only.
func NewService(registry *thresholds.Registry, sensorOverrides map[string]thresholds.ZoneThreshold, publisher Publisher, logger *log.Logger) (*Service, error) {
	if registry == nil {
		return nil, errors.New("classify: nil registry")
	}
	if publisher == nil {
		return nil, errors.New("classify: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		registry:  registry,
		overrides: sensorOverrides,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// HandleReadingReceived classifies every sample in the event. Defrost-cycle
// samples are skipped entirely: they neither open nor clear an alert and are
// excluded from scoring. An unknown zone kind is a configuration error and
// is returned to the caller, never silently defaulted.
func (s *Service) HandleReadingReceived(ctx context.Context, evt readingevents.ReadingReceived) error {
	if s == nil {
		return errors.New("classify: nil service")
	}
	if evt.SensorID == "" {
		return errors.New("classify: reading missing sensor id")
	}

	threshold, err := s.resolveThreshold(evt.SensorID, evt.ZoneKind)
	if err != nil {
		metrics.IncClassifyError("unknown_zone_kind")
		return err
	}

	for _, sample := range evt.Samples {
		if sample.DefrostCycle {
			metrics.IncClassified("defrost_skipped")
			continue
		}
		result, err := Evaluate(sample.TemperatureF, sample.HumidityPct, threshold)
		if err != nil {
			metrics.IncClassifyError("evaluate")
			return err
		}
		classified := ReadingClassified{
			SensorID:         evt.SensorID,
			LocationID:       evt.LocationID,
			ZoneKind:         evt.ZoneKind,
			TS:               sample.TS,
			TemperatureF:     sample.TemperatureF,
			HumidityPct:      sample.HumidityPct,
			Condition:        result.Condition,
			Kind:             result.Kind,
			CriticalOverride: result.CriticalOverride,
			OccurredAt:       sample.TS,
		}
		metrics.IncClassified(string(result.Condition))
		if err := s.publisher.Publish(ctx, classified); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) resolveThreshold(sensorID string, kind thresholds.ZoneKind) (thresholds.ZoneThreshold, error) {
	if s.overrides != nil {
		if override, ok := s.overrides[sensorID]; ok {
			return s.registry.Resolve(kind, &override)
		}
	}
	return s.registry.Resolve(kind, nil)
}

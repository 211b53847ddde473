package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/eventing"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
	telemetryevents "github.com/getevidly/evidly-app-sub001/internal/telemetry/application/events"
	telemetry "github.com/getevidly/evidly-app-sub001/internal/telemetry/domain"
	"github.com/getevidly/evidly-app-sub001/internal/thresholds"
)

// IngestHandler accepts sensor reading batches from the gateway.
type IngestHandler struct {
	repo      telemetry.ReadingRepository
	statuses  telemetry.SensorStatusRepository
	publisher *eventing.Publisher
	logger    *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(repo telemetry.ReadingRepository, statuses telemetry.SensorStatusRepository, publisher *eventing.Publisher, logger *log.Logger) (*IngestHandler, error) {
	if repo == nil {
		return nil, errors.New("reading ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{repo: repo, statuses: statuses, publisher: publisher, logger: logger}, nil
}

// ServeHTTP ingests a reading batch, stores it, then publishes
// ReadingReceived. Publication strictly follows the durable insert.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.IngestResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.IngestResultError
		metrics.IncIngestError("method_not_allowed")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("reading ingest: read body error: %v", err)
		result = metrics.IngestResultError
		metrics.IncIngestError("read_body")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("reading ingest: decode error: %v", err)
		result = metrics.IngestResultError
		metrics.IncIngestError("invalid_json")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	readings, err := req.toReadings()
	if err != nil {
		h.logger.Printf("reading ingest: invalid payload: %v", err)
		result = metrics.IngestResultError
		metrics.IncIngestError("invalid_payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.repo.InsertReadings(r.Context(), readings); err != nil {
		h.logger.Printf("reading ingest: insert error: %v", err)
		result = metrics.IngestResultError
		metrics.IncIngestError("insert_error")
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	if h.statuses != nil {
		latest := readings[len(readings)-1]
		if err := h.statuses.Touch(r.Context(), req.SensorID, req.LocationID, latest.ZoneKind, latest.TS); err != nil {
			h.logger.Printf("reading ingest: status touch error: %v", err)
		}
	}

	if h.publisher != nil {
		samples := make([]telemetryevents.Sample, 0, len(readings))
		var occurredAt time.Time
		for _, reading := range readings {
			if reading.TS.After(occurredAt) {
				occurredAt = reading.TS
			}
			samples = append(samples, telemetryevents.Sample{
				TS:           reading.TS,
				TemperatureF: reading.TemperatureF,
				HumidityPct:  reading.HumidityPct,
				DefrostCycle: reading.DefrostCycle,
			})
		}
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		event := telemetryevents.ReadingReceived{
			SensorID:   req.SensorID,
			LocationID: req.LocationID,
			ZoneKind:   thresholds.ZoneKind(req.ZoneKind),
			OccurredAt: occurredAt,
			Samples:    samples,
		}
		ctx := eventing.WithEventID(r.Context(), eventing.NewEventID())
		if err := h.publisher.Publish(ctx, event); err != nil {
			h.logger.Printf("reading ingest: publish error: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"inserted": len(readings)})
}

type ingestRequest struct {
	SensorID   string        `json:"sensorId"`
	LocationID string        `json:"locationId"`
	ZoneKind   string        `json:"zoneKind"`
	TS         int64         `json:"ts"`
	Temp       *float64      `json:"temperatureF"`
	Humidity   *float64      `json:"humidityPct"`
	Defrost    bool          `json:"defrost"`
	Samples    []ingestPoint `json:"samples"`
}

type ingestPoint struct {
	TS       int64    `json:"ts"`
	Temp     *float64 `json:"temperatureF"`
	Humidity *float64 `json:"humidityPct"`
	Defrost  bool     `json:"defrost"`
}

func (r ingestRequest) toReadings() ([]telemetry.Reading, error) {
	if r.SensorID == "" || r.LocationID == "" || r.ZoneKind == "" {
		return nil, errors.New("missing sensorId/locationId/zoneKind")
	}

	points := r.Samples
	if len(points) == 0 && r.TS != 0 {
		points = []ingestPoint{{TS: r.TS, Temp: r.Temp, Humidity: r.Humidity, Defrost: r.Defrost}}
	}
	if len(points) == 0 {
		return nil, errors.New("no samples")
	}

	readings := make([]telemetry.Reading, 0, len(points))
	for _, point := range points {
		ts, err := parseTimestamp(point.TS)
		if err != nil {
			return nil, err
		}
		if point.Temp == nil {
			return nil, errors.New("missing temperatureF")
		}
		readings = append(readings, telemetry.Reading{
			SensorID:     r.SensorID,
			LocationID:   r.LocationID,
			ZoneKind:     thresholds.ZoneKind(r.ZoneKind),
			TS:           ts,
			TemperatureF: *point.Temp,
			HumidityPct:  point.Humidity,
			DefrostCycle: point.Defrost,
		})
	}
	return readings, nil
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, errors.New("invalid ts")
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}

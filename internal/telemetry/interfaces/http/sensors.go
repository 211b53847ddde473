package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	telemetry "github.com/getevidly/evidly-app-sub001/internal/telemetry/domain"
)

// SensorsHandler lists known sensors and their liveness.
type SensorsHandler struct {
	statuses telemetry.SensorStatusRepository
}

// NewSensorsHandler constructs a handler.
func NewSensorsHandler(statuses telemetry.SensorStatusRepository) (*SensorsHandler, error) {
	if statuses == nil {
		return nil, errors.New("sensors handler: nil status repository")
	}
	return &SensorsHandler{statuses: statuses}, nil
}

type sensorView struct {
	SensorID   string `json:"sensor_id"`
	LocationID string `json:"location_id"`
	ZoneKind   string `json:"zone_kind"`
	LastSeenAt string `json:"last_seen_at"`
}

// ServeHTTP handles GET /api/v1/sensors.
func (h *SensorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	statuses, err := h.statuses.List(r.Context())
	if err != nil {
		http.Error(w, "list sensors error", http.StatusInternalServerError)
		return
	}
	locationID := r.URL.Query().Get("location_id")
	views := make([]sensorView, 0, len(statuses))
	for _, status := range statuses {
		if locationID != "" && status.LocationID != locationID {
			continue
		}
		views = append(views, sensorView{
			SensorID:   status.SensorID,
			LocationID: status.LocationID,
			ZoneKind:   string(status.ZoneKind),
			LastSeenAt: status.LastSeenAt.UTC().Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sensors": views})
}

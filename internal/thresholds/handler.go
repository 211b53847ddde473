package thresholds

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// Handler exposes the active threshold table and lets managers reload
// operator overrides without a restart.
type Handler struct {
	registry *Registry
	path     string
	logger   *log.Logger
	// OnReload receives the freshly merged overrides, so collaborators
	// holding per-sensor overrides can refresh too.
	OnReload func(Overrides)
}

// NewHandler constructs a handler. path is the overrides file consulted
// on reload; empty means defaults only.
func NewHandler(registry *Registry, path string, logger *log.Logger) (*Handler, error) {
	if registry == nil {
		return nil, errors.New("thresholds handler: nil registry")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{registry: registry, path: path, logger: logger}, nil
}

type thresholdView struct {
	ZoneKind          string   `json:"zone_kind"`
	MaxTempF          *float64 `json:"max_temp_f,omitempty"`
	MinTempF          *float64 `json:"min_temp_f,omitempty"`
	WarningBufferDeg  float64  `json:"warning_buffer_deg"`
	MaxHumidityPct    *float64 `json:"max_humidity_pct,omitempty"`
	CriticalMarginDeg float64  `json:"critical_margin_deg"`
}

// ServeHTTP handles GET (snapshot) and POST (reload) on /api/v1/thresholds.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w)
	case http.MethodPost:
		h.handleReload(w)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter) {
	table := h.registry.Snapshot()
	views := make([]thresholdView, 0, len(table))
	for _, kind := range ZoneKinds() {
		threshold, ok := table[kind]
		if !ok {
			continue
		}
		views = append(views, thresholdView{
			ZoneKind:          string(kind),
			MaxTempF:          threshold.MaxTempF,
			MinTempF:          threshold.MinTempF,
			WarningBufferDeg:  threshold.WarningBufferDeg,
			MaxHumidityPct:    threshold.MaxHumidityPct,
			CriticalMarginDeg: threshold.CriticalMarginDeg,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"thresholds": views})
}

func (h *Handler) handleReload(w http.ResponseWriter) {
	overrides, err := LoadOverrides(h.path)
	if err != nil {
		h.logger.Printf("thresholds: reload failed: %v", err)
		http.Error(w, "reload error", http.StatusBadRequest)
		return
	}
	if err := h.registry.Replace(overrides.Table); err != nil {
		h.logger.Printf("thresholds: replace failed: %v", err)
		http.Error(w, "invalid threshold table", http.StatusBadRequest)
		return
	}
	if h.OnReload != nil {
		h.OnReload(overrides)
	}
	w.WriteHeader(http.StatusNoContent)
}

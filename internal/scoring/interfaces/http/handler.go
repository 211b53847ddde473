package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/getevidly/evidly-app-sub001/internal/auth"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
	scoreapp "github.com/getevidly/evidly-app-sub001/internal/scoring/application"
	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

// Handler serves compliance scores and accepts manual check outcomes.
type Handler struct {
	repo     scoring.ScoreRepository
	recorder *scoreapp.Recorder
}

// NewHandler constructs a handler.
func NewHandler(repo scoring.ScoreRepository, recorder *scoreapp.Recorder) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("scores handler: nil repository")
	}
	if recorder == nil {
		return nil, errors.New("scores handler: nil recorder")
	}
	return &Handler{repo: repo, recorder: recorder}, nil
}

// ServeHTTP handles /api/v1/scores and /api/v1/checks.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/scores":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleScores(w, r)
	case "/api/v1/checks":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCheck(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		http.Error(w, "location_id required", http.StatusBadRequest)
		return
	}

	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw == "" && toRaw == "" {
		score, err := h.repo.Latest(r.Context(), locationID)
		if err != nil {
			if errors.Is(err, scoring.ErrScoreNotFound) {
				http.Error(w, "no score for location", http.StatusNotFound)
				return
			}
			http.Error(w, "score lookup error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, score)
		return
	}

	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}
	scores, err := h.repo.ListBetween(r.Context(), locationID, from, to)
	if err != nil {
		http.Error(w, "score lookup error", http.StatusInternalServerError)
		return
	}
	if scores == nil {
		scores = []scoring.OverallScore{}
	}
	writeJSON(w, map[string]any{"scores": scores})
}

type checkRequest struct {
	LocationID string `json:"location_id"`
	Pillar     string `json:"pillar"`
	Condition  string `json:"condition"`
	RecordedAt string `json:"recorded_at,omitempty"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	cmd := scoreapp.CheckCommand{
		LocationID: req.LocationID,
		Pillar:     scoring.PillarKind(req.Pillar),
		Condition:  classify.Condition(req.Condition),
		RecordedBy: auth.SubjectFromContext(r.Context()),
	}
	if req.RecordedAt != "" {
		at, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			http.Error(w, "invalid recorded_at", http.StatusBadRequest)
			return
		}
		cmd.RecordedAt = at
	}
	if err := h.recorder.RecordCheck(r.Context(), cmd); err != nil {
		http.Error(w, "invalid check", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

package reports

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/observability/metrics"
	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

// Handler serves compliance report exports.
type Handler struct {
	scores scoring.ScoreRepository
	alerts alerts.Repository
	logger *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(scores scoring.ScoreRepository, alertRepo alerts.Repository, logger *log.Logger) (*Handler, error) {
	if scores == nil {
		return nil, errors.New("reports handler: nil score repository")
	}
	if alertRepo == nil {
		return nil, errors.New("reports handler: nil alert repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{scores: scores, alerts: alertRepo, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/reports/compliance?location_id&format=xlsx|pdf.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		http.Error(w, "location_id required", http.StatusBadRequest)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "pdf" {
		http.Error(w, "format must be xlsx or pdf", http.StatusBadRequest)
		return
	}

	report := ComplianceReport{
		LocationID:  locationID,
		GeneratedAt: time.Now().UTC(),
	}
	score, err := h.scores.Latest(r.Context(), locationID)
	if err != nil && !errors.Is(err, scoring.ErrScoreNotFound) {
		h.logger.Printf("reports: score lookup for %s failed: %v", locationID, err)
		metrics.ObserveReportExport(format, "error", time.Since(start))
		http.Error(w, "score lookup error", http.StatusInternalServerError)
		return
	}
	report.Score = score

	open, err := h.alerts.ListOpen(r.Context(), alerts.ListFilter{LocationID: locationID})
	if err != nil {
		h.logger.Printf("reports: alert lookup for %s failed: %v", locationID, err)
		metrics.ObserveReportExport(format, "error", time.Since(start))
		http.Error(w, "alert lookup error", http.StatusInternalServerError)
		return
	}
	report.OpenAlerts = open

	var payload []byte
	var contentType, filename string
	switch format {
	case "pdf":
		payload, err = BuildCompliancePDF(report)
		contentType = "application/pdf"
		filename = fmt.Sprintf("compliance-%s.pdf", locationID)
	default:
		payload, err = BuildComplianceXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = fmt.Sprintf("compliance-%s.xlsx", locationID)
	}
	if err != nil {
		h.logger.Printf("reports: render %s for %s failed: %v", format, locationID, err)
		metrics.ObserveReportExport(format, "error", time.Since(start))
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveReportExport(format, "ok", time.Since(start))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	alertapp "github.com/getevidly/evidly-app-sub001/internal/alerts/application"
	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/audit"
	"github.com/getevidly/evidly-app-sub001/internal/auth"
)

// Handler provides alert HTTP endpoints.
type Handler struct {
	service *alertapp.Service
	audit   audit.Logger
}

// HandlerOption configures the handler.
type HandlerOption func(*Handler)

// WithAudit records operator actions in the audit log.
func WithAudit(logger audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.audit = logger
	}
}

// NewHandler constructs a handler.
func NewHandler(service *alertapp.Service, opts ...HandlerOption) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alerts handler: nil service")
	}
	h := &Handler{service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP handles /api/v1/alerts and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alerts":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/alerts/"):
		h.handleAction(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := alerts.ListFilter{
		LocationID:    r.URL.Query().Get("location_id"),
		SensorID:      r.URL.Query().Get("sensor_id"),
		ViolationKind: r.URL.Query().Get("violation_kind"),
		Severity:      alerts.Severity(r.URL.Query().Get("severity")),
	}
	list, err := h.service.ListOpen(r.Context(), filter)
	if err != nil {
		http.Error(w, "list alerts error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}
	writeJSON(w, map[string]any{"alerts": list})
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	alertID, action := parts[0], parts[1]
	actor := auth.SubjectFromContext(r.Context())
	if actor == "" {
		actor = "operator"
	}

	var alert *alerts.Alert
	var err error
	switch action {
	case "ack":
		alert, err = h.service.Acknowledge(r.Context(), alertID, actor)
	case "resolve":
		alert, err = h.service.Resolve(r.Context(), alertID, actor)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			// Idempotent callers treat this as a no-op.
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, "alert action error", http.StatusInternalServerError)
		return
	}
	h.recordAudit(r, action, alert)
	writeJSON(w, alert)
}

func (h *Handler) recordAudit(r *http.Request, action string, alert *alerts.Alert) {
	if h.audit == nil || alert == nil {
		return
	}
	entry := audit.Entry{
		OrgID:        auth.OrgIDFromContext(r.Context()),
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "alert." + action,
		ResourceType: "alert",
		ResourceID:   alert.ID,
		LocationID:   alert.LocationID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if err := h.audit.Log(r.Context(), entry); err != nil {
		// Audit write failure never blocks the operator action.
		return
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

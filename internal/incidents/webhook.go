package incidents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/escalation"
)

// WebhookRemote opens incidents by posting alert context to an external
// incident-management endpoint.
type WebhookRemote struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookRemote constructs a remote. token, when set, travels as a
// bearer credential.
func NewWebhookRemote(url, token string) *WebhookRemote {
	return &WebhookRemote{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type openRequest struct {
	AlertID       string  `json:"alert_id"`
	SensorID      string  `json:"sensor_id"`
	LocationID    string  `json:"location_id"`
	ViolationKind string  `json:"violation_kind"`
	Severity      string  `json:"severity"`
	Stage         string  `json:"stage"`
	LastValue     float64 `json:"last_value"`
	OpenedAt      string  `json:"opened_at"`
	Summary       string  `json:"summary"`
}

type openResponse struct {
	IncidentID string `json:"incident_id"`
}

// Open posts the alert and returns the remote incident id.
func (r *WebhookRemote) Open(ctx context.Context, alert alerts.Alert, stage escalation.Stage) (string, error) {
	if r == nil || r.url == "" {
		return "", errors.New("incidents webhook: empty url")
	}
	payload := openRequest{
		AlertID:       alert.ID,
		SensorID:      alert.SensorID,
		LocationID:    alert.LocationID,
		ViolationKind: string(alert.ViolationKind),
		Severity:      string(alert.Severity),
		Stage:         string(stage),
		LastValue:     alert.LastValue,
		OpenedAt:      alert.OpenedAt.UTC().Format(time.RFC3339),
		Summary: fmt.Sprintf("%s on sensor %s at %s unresolved since %s",
			alert.ViolationKind, alert.SensorID, alert.LocationID,
			alert.OpenedAt.UTC().Format(time.RFC3339)),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("incidents webhook: status %d", resp.StatusCode)
	}
	var parsed openResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.IncidentID == "" {
		return "", errors.New("incidents webhook: empty incident id")
	}
	return parsed.IncidentID, nil
}

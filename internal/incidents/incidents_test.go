package incidents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
	"github.com/getevidly/evidly-app-sub001/internal/escalation"
)

type countingRemote struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRemote) Open(_ context.Context, alert alerts.Alert, _ escalation.Stage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.calls++
	return "inc-" + alert.ID, nil
}

func (r *countingRemote) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func escalatedAlert() alerts.Alert {
	return alerts.Alert{
		ID:            "alert-1",
		SensorID:      "sensor-1",
		LocationID:    "loc-1",
		ViolationKind: classify.KindHighTemp,
		Severity:      alerts.SeverityCritical,
		Status:        alerts.StatusActive,
		OpenedAt:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		LastValue:     47.2,
	}
}

func TestCreateIncidentExactlyOnce(t *testing.T) {
	remote := &countingRemote{}
	creator, err := NewCreator(remote, NewMemoryStore())
	if err != nil {
		t.Fatalf("NewCreator: %v", err)
	}
	ctx := context.Background()
	alert := escalatedAlert()

	first, err := creator.CreateIncident(ctx, alert, escalation.StageCreateIncident)
	if err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}
	// A replayed escalation returns the existing incident without a
	// second remote call.
	second, err := creator.CreateIncident(ctx, alert, escalation.StageCreateIncident)
	if err != nil {
		t.Fatalf("second CreateIncident: %v", err)
	}
	if first != second {
		t.Fatalf("ids differ: %s vs %s", first, second)
	}
	if remote.count() != 1 {
		t.Fatalf("remote calls = %d, want 1", remote.count())
	}
}

func TestCreateIncidentRemoteFailureSurfaces(t *testing.T) {
	remote := &countingRemote{err: errors.New("incident system down")}
	creator, err := NewCreator(remote, NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := creator.CreateIncident(context.Background(), escalatedAlert(), escalation.StageCreateIncident); err == nil {
		t.Fatal("remote failure must surface to the scheduler")
	}

	// Nothing was recorded, so a retry reaches the remote again.
	remote.err = nil
	if _, err := creator.CreateIncident(context.Background(), escalatedAlert(), escalation.StageCreateIncident); err != nil {
		t.Fatalf("retry after remote recovery: %v", err)
	}
	if remote.count() != 1 {
		t.Fatalf("remote calls after retry = %d, want 1", remote.count())
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "alert-1", "create_incident"); !errors.Is(err, ErrNotRecorded) {
		t.Fatalf("Get on empty store err = %v, want ErrNotRecorded", err)
	}
	if err := store.Record(ctx, "alert-1", "create_incident", "inc-9", time.Now()); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "alert-1", "create_incident")
	if err != nil || got != "inc-9" {
		t.Fatalf("Get = %q, %v", got, err)
	}
}

func TestWebhookRemoteOpen(t *testing.T) {
	var received openRequest
	var authz string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(openResponse{IncidentID: "inc-42"})
	}))
	defer server.Close()

	remote := NewWebhookRemote(server.URL, "token-1")
	incidentID, err := remote.Open(context.Background(), escalatedAlert(), escalation.StageCreateIncident)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if incidentID != "inc-42" {
		t.Fatalf("incident id = %s", incidentID)
	}
	if authz != "Bearer token-1" {
		t.Fatalf("authorization = %q", authz)
	}
	if received.AlertID != "alert-1" || received.Stage != "create_incident" || received.Severity != "critical" {
		t.Fatalf("request = %+v", received)
	}
	if received.Summary == "" {
		t.Fatal("summary missing")
	}
}

func TestWebhookRemoteRejectsEmptyIncidentID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(openResponse{})
	}))
	defer server.Close()

	remote := NewWebhookRemote(server.URL, "")
	if _, err := remote.Open(context.Background(), escalatedAlert(), escalation.StageCreateIncident); err == nil {
		t.Fatal("Open accepted an empty incident id")
	}
}

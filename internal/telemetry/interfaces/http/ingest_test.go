package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	telemetrymemory "github.com/getevidly/evidly-app-sub001/internal/telemetry/infrastructure/memory"
)

func jsonInt(v int64) string { return strconv.FormatInt(v, 10) }

func newIngestHandler(t *testing.T) (*IngestHandler, *telemetrymemory.ReadingRepository, *telemetrymemory.SensorStatusRepository) {
	t.Helper()
	repo := telemetrymemory.NewReadingRepository()
	statuses := telemetrymemory.NewSensorStatusRepository()
	handler, err := NewIngestHandler(repo, statuses, nil, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewIngestHandler: %v", err)
	}
	return handler, repo, statuses
}

func postJSON(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIngestSingleReading(t *testing.T) {
	handler, _, statuses := newIngestHandler(t)

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	body := `{"sensorId":"sensor-1","locationId":"loc-1","zoneKind":"walk_in_cooler","ts":` +
		jsonInt(ts.UnixMilli()) + `,"temperatureF":38.5,"humidityPct":45}`
	rec := postJSON(t, handler, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["inserted"] != 1 {
		t.Fatalf("inserted = %d, want 1", resp["inserted"])
	}

	list, err := statuses.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].SensorID != "sensor-1" || !list[0].LastSeenAt.Equal(ts) {
		t.Fatalf("status = %+v", list)
	}
}

func TestIngestBatch(t *testing.T) {
	handler, _, statuses := newIngestHandler(t)

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	body := `{"sensorId":"sensor-1","locationId":"loc-1","zoneKind":"walk_in_freezer","samples":[` +
		`{"ts":` + jsonInt(base.UnixMilli()) + `,"temperatureF":-5},` +
		`{"ts":` + jsonInt(base.Add(time.Minute).UnixMilli()) + `,"temperatureF":-4,"defrost":true},` +
		`{"ts":` + jsonInt(base.Add(2*time.Minute).UnixMilli()) + `,"temperatureF":-3}]}`
	rec := postJSON(t, handler, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["inserted"] != 3 {
		t.Fatalf("inserted = %d, want 3", resp["inserted"])
	}

	list, err := statuses.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !list[0].LastSeenAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("last seen = %v, want newest sample", list[0].LastSeenAt)
	}
}

func TestIngestSecondsTimestampAccepted(t *testing.T) {
	handler, _, _ := newIngestHandler(t)

	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	body := `{"sensorId":"sensor-1","locationId":"loc-1","zoneKind":"walk_in_cooler","ts":` +
		jsonInt(ts.Unix()) + `,"temperatureF":38.5}`
	rec := postJSON(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestIngestRejectsBadPayloads(t *testing.T) {
	handler, _, _ := newIngestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"sensorId":`},
		{"missing sensor", `{"locationId":"loc-1","zoneKind":"walk_in_cooler","ts":1767009600000,"temperatureF":38}`},
		{"no samples", `{"sensorId":"sensor-1","locationId":"loc-1","zoneKind":"walk_in_cooler"}`},
		{"missing temperature", `{"sensorId":"sensor-1","locationId":"loc-1","zoneKind":"walk_in_cooler","ts":1767009600000}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, handler, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestIngestRejectsGet(t *testing.T) {
	handler, _, _ := newIngestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ingest/readings", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	"github.com/getevidly/evidly-app-sub001/internal/classify"
	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

func sampleReport() ComplianceReport {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return ComplianceReport{
		LocationID:  "loc-1",
		GeneratedAt: at,
		Score: &scoring.OverallScore{
			LocationID:   "loc-1",
			Vertical:     scoring.VerticalRestaurant,
			WindowStart:  at.Add(-24 * time.Hour),
			WindowEnd:    at,
			Percent:      87.3,
			CalculatedAt: at,
			Pillars: []scoring.PillarScore{
				{
					Pillar: scoring.PillarTemperature, LocationID: "loc-1",
					WindowStart: at.Add(-24 * time.Hour), WindowEnd: at,
					InRangeCount: 95, WarningCount: 5, TotalCount: 100,
					RawPercent: 97.5, PenalizedPercent: 97.4,
				},
				{
					Pillar: scoring.PillarTraining, LocationID: "loc-1",
					WindowStart: at.Add(-24 * time.Hour), WindowEnd: at,
				},
			},
			MissingPillars: []scoring.PillarKind{scoring.PillarTraining},
		},
		OpenAlerts: []alerts.Alert{
			{
				ID: "alert-1", SensorID: "sensor-1", LocationID: "loc-1",
				ViolationKind: classify.KindHighTemp,
				Severity:      alerts.SeverityCritical,
				Status:        alerts.StatusActive,
				OpenedAt:      at.Add(-2 * time.Hour),
				LastValue:     47.2,
			},
		},
	}
}

func TestBuildCompliancePDF(t *testing.T) {
	data, err := BuildCompliancePDF(sampleReport())
	if err != nil {
		t.Fatalf("BuildCompliancePDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF, starts with %q", data[:8])
	}
}

func TestBuildCompliancePDFWithoutScore(t *testing.T) {
	report := sampleReport()
	report.Score = nil
	report.OpenAlerts = nil
	data, err := BuildCompliancePDF(report)
	if err != nil {
		t.Fatalf("BuildCompliancePDF without score: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty PDF output")
	}
}

func TestBuildComplianceXLSX(t *testing.T) {
	data, err := BuildComplianceXLSX(sampleReport())
	if err != nil {
		t.Fatalf("BuildComplianceXLSX: %v", err)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer workbook.Close()

	for _, sheet := range []string{"score", "open_alerts"} {
		if index, err := workbook.GetSheetIndex(sheet); err != nil || index < 0 {
			t.Fatalf("sheet %s missing: %v", sheet, err)
		}
	}

	rows, err := workbook.GetRows("open_alerts")
	if err != nil {
		t.Fatal(err)
	}
	// Header plus one open alert.
	if len(rows) != 2 {
		t.Fatalf("open_alerts rows = %d, want 2", len(rows))
	}
}

package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alerts "github.com/getevidly/evidly-app-sub001/internal/alerts/domain"
	scoring "github.com/getevidly/evidly-app-sub001/internal/scoring/domain"
)

// ComplianceReport is the exportable view of a location's compliance
// posture: the latest overall score plus the alerts currently open.
type ComplianceReport struct {
	LocationID  string
	GeneratedAt time.Time
	Score       *scoring.OverallScore
	OpenAlerts  []alerts.Alert
}

// BuildCompliancePDF renders the report as a PDF.
func BuildCompliancePDF(report ComplianceReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Compliance Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Location: %s", report.LocationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	if report.Score != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Overall Score: %.1f%%", report.Score.Percent))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Vertical: %s", report.Score.Vertical))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Window: %s to %s",
			report.Score.WindowStart.Format(time.RFC3339),
			report.Score.WindowEnd.Format(time.RFC3339)))
		pdf.Ln(8)

		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, "Pillar", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Raw %", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Penalized %", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Readings", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, pillar := range report.Score.Pillars {
			if pillar.TotalCount == 0 {
				pdf.CellFormat(40, 6, string(pillar.Pillar), "1", 0, "L", false, 0, "")
				pdf.CellFormat(90, 6, "no data", "1", 0, "C", false, 0, "")
				pdf.Ln(-1)
				continue
			}
			pdf.CellFormat(40, 6, string(pillar.Pillar), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", pillar.RawPercent), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", pillar.PenalizedPercent), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", pillar.TotalCount), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	} else {
		pdf.Cell(0, 6, "No score computed yet for this location.")
		pdf.Ln(5)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Open Alerts (%d)", len(report.OpenAlerts)))
	pdf.Ln(7)
	if len(report.OpenAlerts) > 0 {
		pdf.CellFormat(45, 6, "Sensor", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Violation", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Severity", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Opened", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, alert := range report.OpenAlerts {
			pdf.CellFormat(45, 6, alert.SensorID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 6, string(alert.ViolationKind), "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, string(alert.Severity), "1", 0, "C", false, 0, "")
			pdf.CellFormat(35, 6, alert.OpenedAt.UTC().Format("01-02 15:04"), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, alert.Status, "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildComplianceXLSX renders the report as a workbook with a score
// sheet and an open-alerts sheet.
func BuildComplianceXLSX(report ComplianceReport) ([]byte, error) {
	f := excelize.NewFile()
	scoreSheet := "score"
	alertSheet := "open_alerts"
	f.SetSheetName("Sheet1", scoreSheet)
	f.NewSheet(alertSheet)

	_ = f.SetCellValue(scoreSheet, "A1", "Compliance Report")
	_ = f.SetCellValue(scoreSheet, "A3", "Location")
	_ = f.SetCellValue(scoreSheet, "B3", report.LocationID)
	_ = f.SetCellValue(scoreSheet, "A4", "Generated")
	_ = f.SetCellValue(scoreSheet, "B4", report.GeneratedAt.UTC().Format(time.RFC3339))

	if report.Score != nil {
		_ = f.SetCellValue(scoreSheet, "A5", "Overall Score")
		_ = f.SetCellValue(scoreSheet, "B5", report.Score.Percent)
		_ = f.SetCellValue(scoreSheet, "A6", "Vertical")
		_ = f.SetCellValue(scoreSheet, "B6", report.Score.Vertical)
		_ = f.SetCellValue(scoreSheet, "A7", "Window Start")
		_ = f.SetCellValue(scoreSheet, "B7", report.Score.WindowStart.Format(time.RFC3339))
		_ = f.SetCellValue(scoreSheet, "A8", "Window End")
		_ = f.SetCellValue(scoreSheet, "B8", report.Score.WindowEnd.Format(time.RFC3339))

		_ = f.SetCellValue(scoreSheet, "A10", "Pillar")
		_ = f.SetCellValue(scoreSheet, "B10", "Raw %")
		_ = f.SetCellValue(scoreSheet, "C10", "Penalized %")
		_ = f.SetCellValue(scoreSheet, "D10", "In Range")
		_ = f.SetCellValue(scoreSheet, "E10", "Warning")
		_ = f.SetCellValue(scoreSheet, "F10", "Violation")
		for i, pillar := range report.Score.Pillars {
			row := i + 11
			_ = f.SetCellValue(scoreSheet, fmt.Sprintf("A%d", row), string(pillar.Pillar))
			if pillar.TotalCount == 0 {
				_ = f.SetCellValue(scoreSheet, fmt.Sprintf("B%d", row), "no data")
				continue
			}
			_ = f.SetCellValue(scoreSheet, fmt.Sprintf("B%d", row), pillar.RawPercent)
			_ = f.SetCellValue(scoreSheet, fmt.Sprintf("C%d", row), pillar.PenalizedPercent)
			_ = f.SetCellValue(scoreSheet, fmt.Sprintf("D%d", row), pillar.InRangeCount)
			_ = f.SetCellValue(scoreSheet, fmt.Sprintf("E%d", row), pillar.WarningCount)
			_ = f.SetCellValue(scoreSheet, fmt.Sprintf("F%d", row), pillar.ViolationCount)
		}
	} else {
		_ = f.SetCellValue(scoreSheet, "A5", "No score computed yet")
	}

	_ = f.SetCellValue(alertSheet, "A1", "Sensor")
	_ = f.SetCellValue(alertSheet, "B1", "Violation")
	_ = f.SetCellValue(alertSheet, "C1", "Severity")
	_ = f.SetCellValue(alertSheet, "D1", "Status")
	_ = f.SetCellValue(alertSheet, "E1", "Opened At")
	_ = f.SetCellValue(alertSheet, "F1", "Last Value")
	for i, alert := range report.OpenAlerts {
		row := i + 2
		_ = f.SetCellValue(alertSheet, fmt.Sprintf("A%d", row), alert.SensorID)
		_ = f.SetCellValue(alertSheet, fmt.Sprintf("B%d", row), string(alert.ViolationKind))
		_ = f.SetCellValue(alertSheet, fmt.Sprintf("C%d", row), string(alert.Severity))
		_ = f.SetCellValue(alertSheet, fmt.Sprintf("D%d", row), alert.Status)
		_ = f.SetCellValue(alertSheet, fmt.Sprintf("E%d", row), alert.OpenedAt.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(alertSheet, fmt.Sprintf("F%d", row), alert.LastValue)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-pdf/fpdf"

	"planktovision/internal/database"
)

// Generate builds the PDF report for a stored analysis: header, annotated
// image, distribution charts, per-class table and the overall verdict.
func Generate(rec *database.AnalysisRecord) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("PlanktoVision Analysis Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "PlanktoVision - Water Quality Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Analysis %s", rec.ID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Time: %s UTC", rec.Timestamp.UTC().Format("2006-01-02 15:04:05")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Annotated image, when still on disk.
	if rec.AnnotatedPath != "" {
		if data, err := os.ReadFile(rec.AnnotatedPath); err == nil {
			embedPNG(pdf, "annotated", data, 90, 70)
		}
	}

	// Distribution charts.
	if pie, err := PieChart(rec.Counts); err == nil && pie != nil {
		embedPNG(pdf, "pie", pie, 70, 70)
	}
	if bar, err := BarChart(rec.Counts); err == nil && bar != nil {
		embedPNG(pdf, "bar", bar, 120, 60)
	}
	pdf.Ln(4)

	// Per-class table.
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(173, 216, 230)
	headers := []struct {
		label string
		width float64
	}{
		{"Class", 50}, {"Count", 25}, {"Percentage", 35}, {"Avg Confidence", 40}, {"Safety", 30},
	}
	for _, h := range headers {
		pdf.CellFormat(h.width, 8, h.label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(rec.PerClass) == 0 {
		pdf.CellFormat(180, 8, "No detections", "1", 1, "C", false, 0, "")
	}
	for _, row := range rec.PerClass {
		pdf.CellFormat(50, 8, row.Class, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, fmt.Sprintf("%d", row.Count), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 8, fmt.Sprintf("%.1f%%", row.Percentage), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%.2f", row.AvgConfidence), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 8, string(row.Safety), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Overall verdict: %s", rec.Verdict), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Reason: %s", rec.Reason), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// embedPNG places PNG bytes at the current cursor position and advances past
// them. Broken image data is skipped rather than failing the whole report.
func embedPNG(pdf *fpdf.Fpdf, name string, data []byte, width, height float64) {
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() {
		// Clear the sticky error so the rest of the report still renders.
		pdf.ClearError()
		return
	}
	x, y := pdf.GetXY()
	pdf.ImageOptions(name, x, y, width, height, false, opts, 0, "")
	pdf.SetXY(x, y+height+4)
}

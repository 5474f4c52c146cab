package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
)

// PieChart renders the species distribution as a PNG pie chart. Returns nil
// bytes when there is nothing to chart.
func PieChart(counts map[string]int) ([]byte, error) {
	values := chartValues(counts)
	if len(values) == 0 {
		return nil, nil
	}

	pie := chart.PieChart{
		Width:  512,
		Height: 512,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render pie chart: %w", err)
	}
	return buf.Bytes(), nil
}

// BarChart renders per-species counts as a PNG bar chart. Returns nil bytes
// when there is nothing to chart.
func BarChart(counts map[string]int) ([]byte, error) {
	values := chartValues(counts)
	if len(values) == 0 {
		return nil, nil
	}

	bar := chart.BarChart{
		Width:    640,
		Height:   320,
		BarWidth: 48,
		Bars:     values,
	}

	var buf bytes.Buffer
	if err := bar.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}

func chartValues(counts map[string]int) []chart.Value {
	labels := make([]string, 0, len(counts))
	for label, count := range counts {
		if count > 0 {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)

	values := make([]chart.Value, 0, len(labels))
	for _, label := range labels {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%d)", label, counts[label]),
			Value: float64(counts[label]),
		})
	}
	return values
}

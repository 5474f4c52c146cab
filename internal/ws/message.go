package ws

import (
	"time"

	"planktovision/internal/pipeline"
)

// AnalysisMessage is broadcast to live-monitoring clients after each
// completed analysis.
type AnalysisMessage struct {
	Type            string               `json:"type"` // "analysis"
	ID              string               `json:"id"`
	Timestamp       time.Time            `json:"timestamp"`
	TotalDetections int                  `json:"total_detections"`
	PerClass        []pipeline.ClassStat `json:"per_class"`
	Verdict         pipeline.Verdict     `json:"overall_verdict"`
	AnnotatedURL    string               `json:"annotated_image_url,omitempty"`
}

// NewAnalysisMessage builds the broadcast payload for a pipeline result.
func NewAnalysisMessage(result *pipeline.Result) *AnalysisMessage {
	return &AnalysisMessage{
		Type:            "analysis",
		ID:              result.ID,
		Timestamp:       result.Timestamp,
		TotalDetections: result.TotalDetections,
		PerClass:        result.PerClass,
		Verdict:         result.OverallVerdict,
		AnnotatedURL:    result.AnnotatedURL,
	}
}

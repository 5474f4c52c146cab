package pipeline

import (
	"time"

	"planktovision/internal/policy"
)

// BBox is a bounding box in pixel coordinates, x1<x2 and y1<y2, clamped to
// the source image bounds.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the box width in pixels.
func (b BBox) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// Empty reports whether the box has zero area.
func (b BBox) Empty() bool { return b.X2 <= b.X1 || b.Y2 <= b.Y1 }

// Clamp constrains the box to an image of the given dimensions.
func (b BBox) Clamp(width, height int) BBox {
	c := b
	if c.X1 < 0 {
		c.X1 = 0
	}
	if c.Y1 < 0 {
		c.Y1 = 0
	}
	if c.X2 > width {
		c.X2 = width
	}
	if c.Y2 > height {
		c.Y2 = height
	}
	return c
}

// Detection is a single bounding-box hit from the detector, possibly refined
// by the classifier before aggregation.
type Detection struct {
	BBox       BBox    `json:"bbox"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// ClassStat is the aggregated statistics for one detected class.
type ClassStat struct {
	Class         string      `json:"class"`
	Count         int         `json:"count"`
	Percentage    float64     `json:"percentage"`
	AvgConfidence float64     `json:"avg_confidence"`
	Safety        policy.Tier `json:"safety"`
	Description   string      `json:"description"`
}

// Verdict is the overall safety judgment for one analyzed image.
type Verdict struct {
	Verdict policy.Tier `json:"verdict"`
	Reason  string      `json:"reason"`
}

// Result is the aggregate output of one pipeline run. It is immutable once
// returned; the caller owns it.
type Result struct {
	ID              string      `json:"id"`
	Timestamp       time.Time   `json:"timestamp"`
	TotalDetections int         `json:"total_detections"`
	PerClass        []ClassStat `json:"per_class"`
	OverallVerdict  Verdict     `json:"overall_verdict"`
	Detections      []Detection `json:"detections"`

	// AnnotatedPath is the stored annotated image path on disk;
	// AnnotatedURL is the public URL a client retrieves it from.
	AnnotatedPath string `json:"-"`
	AnnotatedURL  string `json:"annotated_image_url"`

	// Warning carries a non-fatal persistence problem, empty otherwise.
	Warning string `json:"warning,omitempty"`
}

// Dominant returns the class with the highest count, or "" when the result
// has no detections.
func (r *Result) Dominant() string {
	if len(r.PerClass) == 0 {
		return ""
	}
	return r.PerClass[0].Class
}

// DominantConfidence returns the average confidence of the dominant class.
func (r *Result) DominantConfidence() float64 {
	if len(r.PerClass) == 0 {
		return 0
	}
	return r.PerClass[0].AvgConfidence
}

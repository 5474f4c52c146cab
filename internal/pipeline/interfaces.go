package pipeline

import (
	"context"
	"image"
)

// Detector is the interface all detection backends implement. Implementations
// must be safe for concurrent Detect calls; the analyzer never serializes
// them.
type Detector interface {
	// Name returns the detector identifier (e.g., "yolo", "mock").
	Name() string

	// IsHealthy returns true if the detector is loaded and reachable.
	IsHealthy() bool

	// Detect runs detection on a decoded image and returns raw detections
	// with pixel bounding boxes clamped to the image bounds. It returns
	// ErrModelUnavailable when the backing model cannot serve, and an
	// *InferenceError when the model runtime fails mid-request.
	Detect(ctx context.Context, img image.Image) ([]Detection, error)

	// Close releases detector resources.
	Close() error
}

// Classifier refines a detection by classifying the crop under its bounding
// box. Implementations must be safe for concurrent use.
type Classifier interface {
	Name() string
	IsHealthy() bool

	// Classify returns the top-1 label and confidence for a crop.
	Classify(ctx context.Context, crop image.Image) (string, float64, error)

	Close() error
}

// HistorySink persists completed analysis results. Failures are surfaced to
// the analyzer as errors and downgraded to response warnings; they never
// abort an analysis.
type HistorySink interface {
	// Record stores a result together with the paths of its stored images
	// and returns the storage id.
	Record(result *Result, imagePath string) (string, error)
}

package detect

import (
	"context"
	"image"
	"math/rand"

	"planktovision/internal/pipeline"
)

// MockAdapter is a stand-in detector for demos and development without an
// inference service. It is selected explicitly through configuration; the
// pipeline never falls back to it when the real detector is unavailable.
//
// Output is deterministic for a given image size and seed so demo runs and
// tests are reproducible.
type MockAdapter struct {
	classes []string
	seed    int64
}

// NewMockAdapter creates a mock detector emitting the given classes. An
// empty class list falls back to the demo organism set.
func NewMockAdapter(classes []string, seed int64) *MockAdapter {
	if len(classes) == 0 {
		classes = []string{"diatom", "rotifer", "copepod", "algae"}
	}
	return &MockAdapter{classes: classes, seed: seed}
}

// Name implements pipeline.Detector.
func (m *MockAdapter) Name() string { return "mock" }

// IsHealthy implements pipeline.Detector. The mock is always ready.
func (m *MockAdapter) IsHealthy() bool { return true }

// Detect emits between 2 and 6 boxes placed pseudo-randomly inside the image
// bounds, cycling through the configured classes.
func (m *MockAdapter) Detect(ctx context.Context, img image.Image) ([]pipeline.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width < 8 || height < 8 {
		return []pipeline.Detection{}, nil
	}

	rng := rand.New(rand.NewSource(m.seed + int64(width)*31 + int64(height)))
	count := 2 + rng.Intn(5)

	detections := make([]pipeline.Detection, 0, count)
	for i := 0; i < count; i++ {
		boxW := width/8 + rng.Intn(width/4)
		boxH := height/8 + rng.Intn(height/4)
		x1 := rng.Intn(width - boxW)
		y1 := rng.Intn(height - boxH)
		detections = append(detections, pipeline.Detection{
			BBox:       pipeline.BBox{X1: x1, Y1: y1, X2: x1 + boxW, Y2: y1 + boxH},
			Class:      m.classes[i%len(m.classes)],
			Confidence: 0.5 + rng.Float64()*0.45,
		})
	}
	return detections, nil
}

// Close implements pipeline.Detector.
func (m *MockAdapter) Close() error { return nil }

var _ pipeline.Detector = (*MockAdapter)(nil)

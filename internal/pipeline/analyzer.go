package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"planktovision/internal/policy"
)

// Analyzer runs the detect → classify → aggregate → annotate → record
// pipeline. It is constructed once at startup and shared by all request
// handlers; every Analyze call is an independent, stateless transform.
type Analyzer struct {
	detector   Detector
	classifier Classifier // nil disables the refinement step
	sink       HistorySink
	policy     *policy.Policy
	resultsDir string
	publicBase string
	logger     *log.Logger
}

// AnalyzerConfig wires the analyzer's collaborators.
type AnalyzerConfig struct {
	Detector   Detector
	Classifier Classifier
	Sink       HistorySink
	Policy     *policy.Policy
	ResultsDir string
	PublicBase string
	Logger     *log.Logger
}

// NewAnalyzer creates a pipeline analyzer.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Analyzer{
		detector:   cfg.Detector,
		classifier: cfg.Classifier,
		sink:       cfg.Sink,
		policy:     cfg.Policy,
		resultsDir: cfg.ResultsDir,
		publicBase: cfg.PublicBase,
		logger:     logger,
	}
}

// Detector returns the configured detection adapter.
func (a *Analyzer) Detector() Detector { return a.detector }

// Classifier returns the configured classification adapter, or nil.
func (a *Analyzer) Classifier() Classifier { return a.classifier }

// Ready reports whether the primary detector can serve requests.
func (a *Analyzer) Ready() bool {
	return a.detector != nil && a.detector.IsHealthy()
}

// Analyze runs the full pipeline over raw image bytes. imageRef is the
// caller's reference to the stored source image (recorded with the history
// row, may be empty). Detection failures abort the request; classification
// failures degrade per crop; persistence failures only set Result.Warning.
// A request whose context expires before persistence writes nothing.
func (a *Analyzer) Analyze(ctx context.Context, imageBytes []byte, imageRef string) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	detections, err := a.detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	refined := make([]Detection, 0, len(detections))
	for _, det := range detections {
		det.BBox = det.BBox.Clamp(width, height)
		if det.BBox.Empty() {
			continue
		}
		refined = append(refined, a.refine(ctx, img, det))
	}

	// A deadline that expired during classification must not produce a
	// history record or an annotated image.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perClass, verdict := Aggregate(refined, a.policy)

	result := &Result{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		TotalDetections: len(refined),
		PerClass:        perClass,
		OverallVerdict:  verdict,
		Detections:      refined,
	}

	if err := a.annotateAndStore(img, refined, result); err != nil {
		a.logger.Printf("[Pipeline] Warning: failed to store annotated image: %v", err)
		result.Warning = "annotated image could not be stored"
	}

	if a.sink != nil {
		if _, err := a.sink.Record(result, imageRef); err != nil {
			a.logger.Printf("[Pipeline] Warning: failed to record history: %v", err)
			if result.Warning != "" {
				result.Warning += "; "
			}
			result.Warning += "analysis could not be saved to history"
		}
	}

	return result, nil
}

// refine runs the classifier over the detection's crop. A degenerate crop or
// a per-crop classification failure keeps the detector's label unchanged.
func (a *Analyzer) refine(ctx context.Context, img image.Image, det Detection) Detection {
	if a.classifier == nil || det.BBox.Empty() {
		return det
	}

	label, conf, err := a.classifier.Classify(ctx, cropImage(img, det.BBox))
	if err != nil {
		a.logger.Printf("[Pipeline] Classification failed for %s crop, keeping detector label: %v", det.Class, err)
		return det
	}

	det.Class = label
	det.Confidence = conf
	return det
}

func (a *Analyzer) annotateAndStore(img image.Image, detections []Detection, result *Result) error {
	annotated, err := Annotate(img, detections, a.policy)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("annotated_%s.png", result.ID[:8])
	path := filepath.Join(a.resultsDir, filename)
	if err := os.MkdirAll(a.resultsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create results dir: %w", err)
	}
	if err := os.WriteFile(path, annotated, 0o644); err != nil {
		return fmt.Errorf("failed to write annotated image: %w", err)
	}

	result.AnnotatedPath = path
	result.AnnotatedURL = a.publicBase + "/" + filename
	return nil
}

// cropImage extracts the sub-image under a bounding box into its own buffer.
func cropImage(img image.Image, box BBox) image.Image {
	r := image.Rect(0, 0, box.Width(), box.Height())
	crop := image.NewRGBA(r)
	src := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Add(img.Bounds().Min)
	draw.Draw(crop, r, img, src.Min, draw.Src)
	return crop
}

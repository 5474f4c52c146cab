package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"planktovision/internal/pipeline"
)

// YOLOAdapter runs object detection through an external YOLO inference
// service over HTTP. The adapter holds no per-request state and is safe for
// concurrent Detect calls.
type YOLOAdapter struct {
	endpoint      string
	client        *http.Client
	confThreshold float64
	iouThreshold  float64
	maxDetections int

	healthCheck time.Time
	healthy     bool
	mu          sync.RWMutex
}

// YOLOConfig holds configuration for the YOLO adapter.
type YOLOConfig struct {
	Endpoint            string
	ConfidenceThreshold float64
	IoUThreshold        float64
	MaxDetections       int
	Timeout             time.Duration
}

type yoloDetection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2]
}

type yoloResponse struct {
	Detections []yoloDetection `json:"detections"`
	Count      int             `json:"count"`
}

type yoloHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device"`
}

// NewYOLOAdapter creates a detection adapter for the given inference service.
func NewYOLOAdapter(cfg YOLOConfig) *YOLOAdapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &YOLOAdapter{
		endpoint:      cfg.Endpoint,
		client:        &http.Client{Timeout: timeout},
		confThreshold: cfg.ConfidenceThreshold,
		iouThreshold:  cfg.IoUThreshold,
		maxDetections: cfg.MaxDetections,
	}
}

// Name implements pipeline.Detector.
func (d *YOLOAdapter) Name() string { return "yolo" }

// IsHealthy checks whether the inference service is reachable and its model
// is loaded. Results are cached for 30 seconds.
func (d *YOLOAdapter) IsHealthy() bool {
	d.mu.RLock()
	if time.Since(d.healthCheck) < 30*time.Second {
		healthy := d.healthy
		d.mu.RUnlock()
		return healthy
	}
	d.mu.RUnlock()

	healthy := false
	resp, err := d.client.Get(d.endpoint + "/health")
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			var health yoloHealthResponse
			if err := json.NewDecoder(resp.Body).Decode(&health); err == nil && health.ModelLoaded {
				healthy = true
			}
		}
	}

	d.mu.Lock()
	d.healthCheck = time.Now()
	d.healthy = healthy
	d.mu.Unlock()
	return healthy
}

// Detect implements pipeline.Detector. The image is sent to the service as
// JPEG together with the configured confidence and IoU thresholds.
func (d *YOLOAdapter) Detect(ctx context.Context, img image.Image) ([]pipeline.Detection, error) {
	if !d.IsHealthy() {
		return nil, pipeline.ErrModelUnavailable
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, &pipeline.InferenceError{Stage: pipeline.StageDetect, Err: err}
	}
	if err := jpeg.Encode(fw, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, &pipeline.InferenceError{Stage: pipeline.StageDetect, Err: err}
	}
	w.WriteField("conf_threshold", fmt.Sprintf("%.3f", d.confThreshold))
	w.WriteField("iou_threshold", fmt.Sprintf("%.3f", d.iouThreshold))
	if d.maxDetections > 0 {
		w.WriteField("max_det", fmt.Sprintf("%d", d.maxDetections))
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/detect", &body)
	if err != nil {
		return nil, &pipeline.InferenceError{Stage: pipeline.StageDetect, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		d.markUnhealthy()
		return nil, &pipeline.InferenceError{Stage: pipeline.StageDetect, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, &pipeline.InferenceError{
			Stage: pipeline.StageDetect,
			Err:   fmt.Errorf("detection service returned status %d: %s", resp.StatusCode, msg),
		}
	}

	var result yoloResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &pipeline.InferenceError{Stage: pipeline.StageDetect, Err: err}
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	detections := make([]pipeline.Detection, 0, len(result.Detections))
	for _, det := range result.Detections {
		if len(det.BBox) != 4 {
			continue
		}
		box := pipeline.BBox{
			X1: int(det.BBox[0]),
			Y1: int(det.BBox[1]),
			X2: int(det.BBox[2]),
			Y2: int(det.BBox[3]),
		}.Clamp(width, height)
		if box.Empty() {
			continue
		}
		detections = append(detections, pipeline.Detection{
			BBox:       box,
			Class:      det.Class,
			Confidence: det.Confidence,
		})
	}
	return detections, nil
}

// Close implements pipeline.Detector.
func (d *YOLOAdapter) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *YOLOAdapter) markUnhealthy() {
	d.mu.Lock()
	d.healthy = false
	d.healthCheck = time.Now()
	d.mu.Unlock()
}

var _ pipeline.Detector = (*YOLOAdapter)(nil)

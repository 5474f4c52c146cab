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

// HTTPClassifier refines detections by sending crops to an external
// classification service. Safe for concurrent use.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client

	healthCheck time.Time
	healthy     bool
	mu          sync.RWMutex
}

type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NewHTTPClassifier creates a classification adapter for the given service.
func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name implements pipeline.Classifier.
func (c *HTTPClassifier) Name() string { return "classifier" }

// IsHealthy checks service reachability, cached for 30 seconds.
func (c *HTTPClassifier) IsHealthy() bool {
	c.mu.RLock()
	if time.Since(c.healthCheck) < 30*time.Second {
		healthy := c.healthy
		c.mu.RUnlock()
		return healthy
	}
	c.mu.RUnlock()

	healthy := false
	resp, err := c.client.Get(c.endpoint + "/health")
	if err == nil {
		resp.Body.Close()
		healthy = resp.StatusCode == http.StatusOK
	}

	c.mu.Lock()
	c.healthCheck = time.Now()
	c.healthy = healthy
	c.mu.Unlock()
	return healthy
}

// Classify implements pipeline.Classifier. Returns the service's top-1 label
// and confidence for the crop.
func (c *HTTPClassifier) Classify(ctx context.Context, crop image.Image) (string, float64, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "crop.jpg")
	if err != nil {
		return "", 0, &pipeline.InferenceError{Stage: pipeline.StageClassify, Err: err}
	}
	if err := jpeg.Encode(fw, crop, &jpeg.Options{Quality: 90}); err != nil {
		return "", 0, &pipeline.InferenceError{Stage: pipeline.StageClassify, Err: err}
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/classify", &body)
	if err != nil {
		return "", 0, &pipeline.InferenceError{Stage: pipeline.StageClassify, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, &pipeline.InferenceError{Stage: pipeline.StageClassify, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", 0, &pipeline.InferenceError{
			Stage: pipeline.StageClassify,
			Err:   fmt.Errorf("classification service returned status %d: %s", resp.StatusCode, msg),
		}
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, &pipeline.InferenceError{Stage: pipeline.StageClassify, Err: err}
	}
	if result.Label == "" {
		return "", 0, &pipeline.InferenceError{
			Stage: pipeline.StageClassify,
			Err:   fmt.Errorf("classification service returned no label"),
		}
	}
	return result.Label, result.Confidence, nil
}

// Close implements pipeline.Classifier.
func (c *HTTPClassifier) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

var _ pipeline.Classifier = (*HTTPClassifier)(nil)

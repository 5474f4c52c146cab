package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"planktovision/internal/pipeline"
	"planktovision/internal/ws"
)

type analyzeResponse struct {
	*pipeline.Result
	UploadedImageURL string `json:"uploaded_image_url,omitempty"`
}

// handleAnalyze accepts a multipart image upload, runs the full detection
// pipeline on it and returns the aggregated result. The annotated image and
// the history record are produced as side effects.
func (s *Server) handleAnalyze(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		// Older clients send the part as "file".
		file, header, err = c.Request.FormFile("file")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file in form field 'image'"})
		return
	}
	defer file.Close()

	if header.Size > s.cfg.MaxUploadBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("image exceeds the %d MB upload limit", s.cfg.MaxUploadMB),
		})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes()))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	uploadPath, uploadURL, err := s.storeUpload(header.Filename, data)
	if err != nil {
		// Keeping the original upload is best effort; the analysis
		// itself does not depend on it.
		s.logger.Printf("[Server] Failed to store upload: %v", err)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.InferTimeout)
	defer cancel()

	result, err := s.analyzer.Analyze(ctx, data, uploadPath)
	if err != nil {
		s.writeAnalyzeError(c, err)
		return
	}

	s.hub.BroadcastAnalysis(ws.NewAnalysisMessage(result))

	c.JSON(http.StatusOK, analyzeResponse{Result: result, UploadedImageURL: uploadURL})
}

func (s *Server) writeAnalyzeError(c *gin.Context, err error) {
	var infErr *pipeline.InferenceError
	switch {
	case errors.Is(err, pipeline.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded file is not a valid image"})
	case errors.Is(err, pipeline.ErrModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "detection model is not available"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "inference timed out"})
	case errors.As(err, &infErr):
		s.logger.Printf("[Server] Inference failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "inference failed"})
	default:
		s.logger.Printf("[Server] Analysis failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
	}
}

// storeUpload writes the original image next to the annotated results so the
// UI can show both. Returns the on-disk path and the public URL.
func (s *Server) storeUpload(original string, data []byte) (string, string, error) {
	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		return "", "", err
	}
	name := time.Now().UTC().Format("20060102T150405") + "_" + sanitizeFilename(original)
	path := filepath.Join(s.cfg.UploadsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", err
	}
	return path, "/static/uploads/" + name, nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		name = "upload.jpg"
	}
	return name
}

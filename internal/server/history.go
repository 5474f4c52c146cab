package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"planktovision/internal/database"
	"planktovision/internal/pipeline"
	"planktovision/internal/report"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// historyView is the JSON shape of one stored analysis. Paths are mapped to
// the static URLs the files are actually served from.
type historyView struct {
	ID            string               `json:"id"`
	Timestamp     time.Time            `json:"timestamp"`
	ImageURL      string               `json:"image_url,omitempty"`
	AnnotatedURL  string               `json:"annotated_image_url,omitempty"`
	Counts        map[string]int       `json:"counts"`
	PerClass      []pipeline.ClassStat `json:"per_class"`
	Total         int                  `json:"total_detections"`
	Dominant      string               `json:"dominant_class,omitempty"`
	Verdict       string               `json:"verdict"`
	Reason        string               `json:"reason"`
	AvgConfidence float64              `json:"avg_confidence"`
}

func newHistoryView(rec *database.AnalysisRecord) historyView {
	v := historyView{
		ID:            rec.ID,
		Timestamp:     rec.Timestamp,
		Counts:        rec.Counts,
		PerClass:      rec.PerClass,
		Total:         rec.Total,
		Dominant:      rec.Dominant,
		Verdict:       rec.Verdict,
		Reason:        rec.Reason,
		AvgConfidence: rec.AvgConfidence,
	}
	if rec.ImagePath != "" {
		v.ImageURL = "/static/uploads/" + filepath.Base(rec.ImagePath)
	}
	if rec.AnnotatedPath != "" {
		v.AnnotatedURL = "/static/results/" + filepath.Base(rec.AnnotatedPath)
	}
	if v.Counts == nil {
		v.Counts = map[string]int{}
	}
	if v.PerClass == nil {
		v.PerClass = []pipeline.ClassStat{}
	}
	return v
}

// handleHistory lists stored analyses, most recent first.
func (s *Server) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	records, err := s.db.ListAnalyses(limit)
	if err != nil {
		s.logger.Printf("[Server] Failed to list analyses: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	views := make([]historyView, 0, len(records))
	for _, rec := range records {
		views = append(views, newHistoryView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"analyses": views, "count": len(views)})
}

func (s *Server) handleHistoryItem(c *gin.Context) {
	rec, err := s.db.GetAnalysis(c.Param("id"))
	if err != nil {
		s.logger.Printf("[Server] Failed to load analysis: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	c.JSON(http.StatusOK, newHistoryView(rec))
}

// handleReport renders one stored analysis as a downloadable PDF.
func (s *Server) handleReport(c *gin.Context) {
	rec, err := s.db.GetAnalysis(c.Param("id"))
	if err != nil {
		s.logger.Printf("[Server] Failed to load analysis: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}

	pdf, err := report.Generate(rec)
	if err != nil {
		s.logger.Printf("[Server] Failed to generate report for %s: %v", rec.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate report"})
		return
	}

	short := rec.ID
	if len(short) > 8 {
		short = short[:8]
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=report_%s.pdf", short))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

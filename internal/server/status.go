package server

import (
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReadyz reports whether the pipeline can actually serve an analysis,
// which requires a healthy detector.
func (s *Server) handleReadyz(c *gin.Context) {
	if !s.analyzer.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"reason": "detection model is not available",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":      "planktovision",
		"status":       "online",
		"ready":        s.analyzer.Ready(),
		"detectors":    s.registry.Health(),
		"live_clients": s.hub.ClientCount(),
		"timestamp":    time.Now().UTC(),
	})
}

func (s *Server) handleAnalytics(c *gin.Context) {
	analytics, err := s.db.GetAnalytics()
	if err != nil {
		s.logger.Printf("[Server] Failed to compute analytics: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

type sensorPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Turbidity float64   `json:"turbidity"`
}

// handleSensors returns simulated water sensor readings. No hardware is
// attached in this deployment; the values follow plausible freshwater
// ranges so the dashboard has something to plot.
func (s *Server) handleSensors(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 168 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be between 1 and 168"})
			return
		}
		hours = n
	}

	now := time.Now().UTC()
	rng := rand.New(rand.NewSource(now.Unix() / 3600))

	history := make([]sensorPoint, 0, hours)
	for i := hours - 1; i >= 0; i-- {
		history = append(history, sensorPoint{
			Timestamp: now.Add(-time.Duration(i) * time.Hour).Truncate(time.Hour),
			Turbidity: round2(1.0 + rng.Float64()*4.0),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"current": gin.H{
			"temperature":      round2(20.0 + rng.Float64()*8.0),
			"ph":               round2(6.5 + rng.Float64()*1.5),
			"turbidity":        history[len(history)-1].Turbidity,
			"dissolved_oxygen": round2(6.0 + rng.Float64()*3.0),
		},
		"history":   history,
		"timestamp": now,
	})
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

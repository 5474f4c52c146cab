package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleAdminLogin(c *gin.Context) {
	if !s.authenticator.IsEnabled() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin access is not configured"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	token, expiresAt, err := s.authenticator.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expiresAt})
}

func (s *Server) handleAdminDelete(c *gin.Context) {
	id := c.Param("id")
	found, err := s.db.DeleteAnalysis(id)
	if err != nil {
		s.logger.Printf("[Server] Failed to delete analysis %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete analysis"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	s.logger.Printf("[Server] Deleted analysis %s", id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type purgeRequest struct {
	// OlderThanDays removes every record whose timestamp is before
	// now minus this many days.
	OlderThanDays int `json:"older_than_days" binding:"required,min=1"`
}

func (s *Server) handleAdminPurge(c *gin.Context) {
	var req purgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "older_than_days must be a positive integer"})
		return
	}

	before := time.Now().UTC().AddDate(0, 0, -req.OlderThanDays)
	removed, err := s.db.DeleteOldAnalyses(before)
	if err != nil {
		s.logger.Printf("[Server] Failed to purge analyses: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge analyses"})
		return
	}
	s.logger.Printf("[Server] Purged %d analyses older than %d days", removed, req.OlderThanDays)
	c.JSON(http.StatusOK, gin.H{"removed": removed, "before": before})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AppInfo describes the running service
type AppInfo struct {
	Name    string
	Version string
}

// SystemHandler serves the service description and health check
type SystemHandler struct {
	info AppInfo
	now  func() time.Time
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(info AppInfo) *SystemHandler {
	return &SystemHandler{info: info, now: time.Now}
}

// Root handles GET /
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":     "Welcome to " + h.info.Name,
		"version":     h.info.Version,
		"description": "Legal document analyzer",
		"endpoints": gin.H{
			"analyze":          "/analyze-document",
			"chat":             "/chat",
			"sessions":         "/chat/sessions/:id",
			"session_document": "/chat/sessions/:id/document",
			"health":           "/health",
		},
	})
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   h.info.Name,
		"version":   h.info.Version,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tourbook/booking-service/internal/database"
)

// HealthHandler reports service and datastore health
type HealthHandler struct {
	store   database.Store
	version string
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(store database.Store, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// Health - GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"version":  h.version,
		"time":     time.Now().UTC(),
	})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/logger"
	"go.uber.org/zap"
)

// Health reports database and cache connectivity
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}

	if sqlDB, err := h.db.DB(); err != nil {
		status = http.StatusServiceUnavailable
		checks["database"] = "unavailable"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		logger.Log.Warn("Health check: database ping failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		checks["database"] = "unavailable"
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			logger.Log.Warn("Health check: redis ping failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			checks["redis"] = "unavailable"
		} else {
			checks["redis"] = "ok"
		}
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

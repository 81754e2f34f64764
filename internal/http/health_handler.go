package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PingFunc comprueba que el store responde.
type PingFunc func(ctx context.Context) error

// HealthHandler expone GET /health.
type HealthHandler struct {
	logger  *zap.Logger
	ping    PingFunc
	timeout time.Duration
}

func NewHealthHandler(logger *zap.Logger, ping PingFunc) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger, ping: ping, timeout: 2 * time.Second}
}

// Health responde 200 si el store contesta, 503 si no.
func (h *HealthHandler) Health(c *gin.Context) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

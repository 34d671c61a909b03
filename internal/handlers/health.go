package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/streem-backend/internal/logger"
)

const readyCheckTimeout = 2 * time.Second

// HealthChecker pings one dependency.
type HealthChecker func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthChecker
	log    *logger.Logger
}

func NewHealthHandler(checks map[string]HealthChecker, baseLog *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		log:    baseLog.With("handler", "HealthHandler"),
	}
}

// Healthz is pure liveness; it never touches dependencies.
func (h *HealthHandler) Healthz(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

// Readyz pings every dependency with a short timeout and reports each
// one individually.
func (h *HealthHandler) Readyz(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			healthy = false
			results[name] = err.Error()
			h.log.Warn("Readiness check failed", "dependency", name, "error", err.Error())
		} else {
			results[name] = "ok"
		}
	}
	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": results})
}

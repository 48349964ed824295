package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// HealthController serves the liveness endpoint
type HealthController struct {
	checks map[string]HealthChecker
}

// NewHealthController creates a controller probing the named dependencies
func NewHealthController(checks map[string]HealthChecker) *HealthController {
	return &HealthController{checks: checks}
}

// Health reports "ok" or "degraded" with one entry per dependency
func (c *HealthController) Health(ctx *gin.Context) {
	checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(c.checks))
	for name, check := range c.checks {
		if check.Healthy(checkCtx) {
			deps[name] = "up"
			continue
		}
		deps[name] = "down"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	ctx.JSON(code, gin.H{"status": status, "dependencies": deps, "time": time.Now().UTC()})
}

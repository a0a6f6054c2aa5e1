package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

const probeTimeout = 2 * time.Second

// Probe checks one upstream dependency.
type Probe func(ctx context.Context) error

// HealthHandler reports aggregate service health. The endpoint always
// returns 200; degradation shows in the body so load balancers keep
// routing while operators see what broke.
type HealthHandler struct {
	log    *logger.Logger
	probes map[string]Probe
}

func NewHealthHandler(log *logger.Logger, probes map[string]Probe) *HealthHandler {
	return &HealthHandler{log: log.With("handler", "HealthHandler"), probes: probes}
}

// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	checks := make(map[string]string, len(h.probes))
	status := "ok"
	for name, probe := range h.probes {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		err := probe(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			h.log.Warn("health probe failed", "probe", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
}

package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

const statsStreamInterval = 3 * time.Second

// StatsHandler serves store-wide counters, both as a snapshot and as an
// SSE stream. Responses are always 200; a failing dependency shows up as
// ok:false rather than an error status.
type StatsHandler struct {
	log    *logger.Logger
	videos store.VideoRepo
	probes map[string]Probe
}

func NewStatsHandler(log *logger.Logger, videos store.VideoRepo, probes map[string]Probe) *StatsHandler {
	return &StatsHandler{log: log.With("handler", "StatsHandler"), videos: videos, probes: probes}
}

func (h *StatsHandler) snapshot(ctx context.Context) gin.H {
	services := make(map[string]bool, len(h.probes))
	for name, probe := range h.probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		services[name] = probe(pctx) == nil
		cancel()
	}

	payload := gin.H{"services": services, "generated_at": time.Now().UTC()}
	stats, err := h.videos.Stats(dbctx.Context{Ctx: ctx})
	if err != nil {
		h.log.Warn("stats query failed", "error", err)
		payload["stats"] = nil
		return payload
	}
	payload["stats"] = stats
	return payload
}

// GET /stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot(c.Request.Context()))
}

// GET /stats/stream
func (h *StatsHandler) StreamStats(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	ticker := time.NewTicker(statsStreamInterval)
	defer ticker.Stop()

	// First event immediately, then one per tick.
	c.SSEvent("stats", h.snapshot(ctx))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("stats", h.snapshot(ctx))
			return true
		}
	})
}

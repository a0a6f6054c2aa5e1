package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentat-backend/internal/http/response"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/services"
)

type AnalyzeHandler struct {
	log     *logger.Logger
	analyze services.AnalyzeService
}

func NewAnalyzeHandler(log *logger.Logger, analyze services.AnalyzeService) *AnalyzeHandler {
	return &AnalyzeHandler{log: log.With("handler", "AnalyzeHandler"), analyze: analyze}
}

type analyzeReq struct {
	URL           string `json:"url"`
	FetchMetadata bool   `json:"fetch_metadata"`
}

// POST /youtube/analyze
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req analyzeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.analyze.Analyze(c.Request.Context(), req.URL, req.FetchMetadata)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "analyze_failed", err)
		return
	}
	response.RespondOK(c, result)
}

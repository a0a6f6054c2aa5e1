package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	"github.com/yungbote/mentat-backend/internal/http/response"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

type VideoHandler struct {
	log    *logger.Logger
	videos store.VideoRepo
	chunks store.ChunkRepo
}

func NewVideoHandler(log *logger.Logger, videos store.VideoRepo, chunks store.ChunkRepo) *VideoHandler {
	return &VideoHandler{log: log.With("handler", "VideoHandler"), videos: videos, chunks: chunks}
}

// GET /videos/:id
func (h *VideoHandler) GetVideo(c *gin.Context) {
	videoID := strings.TrimSpace(c.Param("id"))
	if videoID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_video_id", nil)
		return
	}
	video, err := h.videos.Get(dbctx.Context{Ctx: c.Request.Context()}, videoID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "video_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"video": video})
}

// GET /videos/:id/chunks
func (h *VideoHandler) GetVideoChunks(c *gin.Context) {
	videoID := strings.TrimSpace(c.Param("id"))
	if videoID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_video_id", nil)
		return
	}
	if _, err := h.videos.Get(dbctx.Context{Ctx: c.Request.Context()}, videoID); err != nil {
		response.RespondError(c, response.StatusFor(err), "video_not_found", err)
		return
	}
	chunks, err := h.chunks.GetForVideo(dbctx.Context{Ctx: c.Request.Context()}, videoID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "list_chunks_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"video_id": videoID, "chunks": chunks})
}

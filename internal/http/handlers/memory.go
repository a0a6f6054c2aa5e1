package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/mentat-backend/internal/http/response"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/services"
)

type MemoryHandler struct {
	log    *logger.Logger
	memory services.MemoryService
}

func NewMemoryHandler(log *logger.Logger, memory services.MemoryService) *MemoryHandler {
	return &MemoryHandler{log: log.With("handler", "MemoryHandler"), memory: memory}
}

type addMemoryReq struct {
	Content              string     `json:"content"`
	Category             string     `json:"category"`
	SourceConversationID *uuid.UUID `json:"source_conversation_id,omitempty"`
}

// POST /memory
func (h *MemoryHandler) Add(c *gin.Context) {
	var req addMemoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	item, err := h.memory.Add(c.Request.Context(), req.Content, req.Category, req.SourceConversationID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "add_memory_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"memory": item})
}

// GET /memory?category=preference
func (h *MemoryHandler) List(c *gin.Context) {
	items, err := h.memory.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "list_memory_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"memories": items})
}

// PATCH /memory/:id
func (h *MemoryHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_memory_id", err)
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.memory.Update(c.Request.Context(), id, updates); err != nil {
		response.RespondError(c, response.StatusFor(err), "update_memory_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"updated": id})
}

// GET /memory/search?q=...
func (h *MemoryHandler) Search(c *gin.Context) {
	query := c.Query("q")
	items, err := h.memory.Search(c.Request.Context(), query)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "search_memory_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"query": query, "memories": items})
}

// DELETE /memory
func (h *MemoryHandler) ClearAll(c *gin.Context) {
	removed, err := h.memory.ClearAll(c.Request.Context())
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "clear_memory_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"cleared": removed})
}

// DELETE /memory/:id
func (h *MemoryHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_memory_id", err)
		return
	}
	if err := h.memory.Delete(c.Request.Context(), id); err != nil {
		response.RespondError(c, response.StatusFor(err), "delete_memory_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": id})
}

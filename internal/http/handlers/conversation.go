package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/mentat-backend/internal/http/response"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/services"
)

type ConversationHandler struct {
	log    *logger.Logger
	convos services.ConversationService
}

func NewConversationHandler(log *logger.Logger, convos services.ConversationService) *ConversationHandler {
	return &ConversationHandler{log: log.With("handler", "ConversationHandler"), convos: convos}
}

// GET /conversations?limit=50&offset=0
func (h *ConversationHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	convos, err := h.convos.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "list_conversations_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"conversations": convos})
}

type createConversationReq struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

// POST /conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	convo, err := h.convos.Create(c.Request.Context(), req.Title, req.Model)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "create_conversation_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"conversation": convo})
}

// GET /conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	convo, err := h.convos.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "conversation_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"conversation": convo})
}

type updateConversationReq struct {
	Title *string `json:"title"`
	Model *string `json:"model"`
}

// PATCH /conversations/:id
func (h *ConversationHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	var req updateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	convo, err := h.convos.Update(c.Request.Context(), id, req.Title, req.Model)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "update_conversation_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"conversation": convo})
}

// DELETE /conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	if err := h.convos.Delete(c.Request.Context(), id); err != nil {
		response.RespondError(c, response.StatusFor(err), "delete_conversation_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": id})
}

// GET /conversations/search?q=...
func (h *ConversationHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	convos, err := h.convos.Search(c.Request.Context(), query)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "search_conversations_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"query": query, "conversations": convos})
}

func intQuery(c *gin.Context, name string, def int) int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

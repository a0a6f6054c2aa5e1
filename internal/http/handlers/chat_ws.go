package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yungbote/mentat-backend/internal/chat"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ChatWSHandler upgrades chat sockets and hands them to a Session. The
// two routes differ only in whether retrieval runs per frame.
type ChatWSHandler struct {
	log  *logger.Logger
	deps chat.Deps
}

func NewChatWSHandler(log *logger.Logger, deps chat.Deps) *ChatWSHandler {
	return &ChatWSHandler{log: log.With("handler", "ChatWSHandler"), deps: deps}
}

// GET /chat/ws/chat
func (h *ChatWSHandler) Chat(c *gin.Context) {
	h.serve(c, false)
}

// GET /chat/ws/rag-chat
func (h *ChatWSHandler) RAGChat(c *gin.Context) {
	h.serve(c, true)
}

func (h *ChatWSHandler) serve(c *gin.Context, useRAG bool) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	chat.NewSession(h.deps, conn, useRAG).Run(c.Request.Context())
}

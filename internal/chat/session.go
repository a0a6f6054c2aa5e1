package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/observability"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/llm"
	"github.com/yungbote/mentat-backend/internal/rag"
	"github.com/yungbote/mentat-backend/internal/services"
	"github.com/yungbote/mentat-backend/internal/services/style"
)

const maxMessageChars = 10000

// Deps carries everything a session needs. Conversations, Memory,
// Styles and Retriever may be nil; the session degrades to a bare LLM
// proxy.
type Deps struct {
	Log           *logger.Logger
	Conversations services.ConversationService
	Memory        services.MemoryService
	Styles        *style.Registry
	Retriever     rag.Retriever
	LLM           llm.Client
	Metrics       *observability.Metrics
}

// Session owns one chat WebSocket: a frame-read pump, synchronous frame
// handling, and a cancellation handle that kills any in-flight upstream
// stream when the peer goes away.
type Session struct {
	deps Deps
	conn *websocket.Conn
	rag  bool
	log  *logger.Logger
}

func NewSession(deps Deps, conn *websocket.Conn, useRAG bool) *Session {
	return &Session{
		deps: deps,
		conn: conn,
		rag:  useRAG,
		log:  deps.Log.With("service", "ChatSession", "rag", useRAG),
	}
}

// Run blocks until the peer closes the socket or ctx is cancelled. All
// writes happen from this goroutine; the read pump only feeds frames and
// cancels.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.deps.Metrics != nil {
		s.deps.Metrics.ActiveSessions.Inc()
		defer s.deps.Metrics.ActiveSessions.Dec()
	}

	frames := make(chan ClientFrame)
	go s.readPump(frames, cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			s.handleFrame(ctx, frame)
		}
	}
}

func (s *Session) readPump(frames chan<- ClientFrame, cancel context.CancelFunc) {
	defer close(frames)
	defer cancel()
	for {
		kind, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// Surface the parse error through the handler path by sending
			// an empty frame; validation rejects it.
			frame = ClientFrame{}
		}
		frames <- frame
	}
}

func (s *Session) send(v any) {
	if err := s.conn.WriteJSON(v); err != nil {
		s.log.Debug("write failed, peer likely gone", "error", err)
	}
}

func (s *Session) handleFrame(ctx context.Context, frame ClientFrame) {
	msg := strings.TrimSpace(frame.Message)
	if msg == "" {
		s.send(errorFrame("message must not be empty"))
		return
	}
	if len([]rune(msg)) > maxMessageChars {
		s.send(errorFrame(fmt.Sprintf("message exceeds %d characters", maxMessageChars)))
		return
	}

	conversationID := s.persistUserTurn(ctx, frame.ConversationID, msg)
	systemPrefix := s.assembleSystemContext(ctx, frame, msg)

	var (
		contextBlock string
		sources      []types.SourceRef
	)
	if s.rag && s.deps.Retriever != nil {
		limit := frame.RAGLimit
		if limit < 1 || limit > 20 {
			limit = rag.DefaultLimit
		}
		contextBlock, sources = s.deps.Retriever.ContextAndSources(ctx, msg, limit)
		if contextBlock == "" && s.deps.Metrics != nil {
			s.deps.Metrics.RetrievalMisses.Inc()
		}
	}

	var prompt string
	if s.rag {
		titles := make([]string, 0, len(sources))
		for _, src := range sources {
			titles = append(titles, src.Title)
		}
		prompt = BuildRAGPrompt(systemPrefix, contextBlock, titles, msg)
	} else {
		prompt = BuildPlainPrompt(systemPrefix, msg)
	}

	full, err := s.deps.LLM.StreamCompletion(ctx, frame.Model,
		[]llm.Message{{Role: types.RoleUser, Content: prompt}},
		func(delta string) {
			s.send(tokenFrame(delta))
			if s.deps.Metrics != nil {
				s.deps.Metrics.TokensStreamed.Inc()
			}
		})
	if err != nil {
		if ctx.Err() != nil {
			// Peer is gone; emit nothing.
			return
		}
		s.log.Warn("completion failed", "error", err)
		s.send(errorFrame("the language model is unavailable, try again"))
		return
	}

	s.persistAssistantTurn(ctx, conversationID, full, sources)
	s.send(doneFrame(sources))
}

// persistUserTurn appends the user message when a conversation id is
// supplied. Persistence problems never fail the turn.
func (s *Session) persistUserTurn(ctx context.Context, rawID, msg string) uuid.UUID {
	if rawID == "" || s.deps.Conversations == nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		s.log.Warn("bad conversation id on frame", "conversation_id", rawID)
		return uuid.Nil
	}
	if _, err := s.deps.Conversations.AddMessage(ctx, id, types.RoleUser, msg, nil); err != nil {
		s.log.Warn("user turn not persisted", "conversation_id", id, "error", err)
		return uuid.Nil
	}
	return id
}

func (s *Session) persistAssistantTurn(ctx context.Context, conversationID uuid.UUID, content string, sources []types.SourceRef) {
	if conversationID == uuid.Nil || s.deps.Conversations == nil {
		return
	}
	if _, err := s.deps.Conversations.AddMessage(ctx, conversationID, types.RoleAssistant, content, sources); err != nil {
		s.log.Warn("assistant turn not persisted", "conversation_id", conversationID, "error", err)
	}
}

// assembleSystemContext merges the style modifier and the memory block.
// Both are optional and fail-soft.
func (s *Session) assembleSystemContext(ctx context.Context, frame ClientFrame, msg string) string {
	var parts []string
	if s.deps.Styles != nil {
		if m := s.deps.Styles.Modifier(frame.Style); m != "" {
			parts = append(parts, m)
		}
	}
	if frame.useMemory() && s.deps.Memory != nil {
		if block := s.deps.Memory.BuildMemoryContext(ctx, msg, 5); block != "" {
			parts = append(parts, block)
		}
	}
	return strings.Join(parts, "\n\n")
}

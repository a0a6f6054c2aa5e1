package chat

import types "github.com/yungbote/mentat-backend/internal/domain"

// ClientFrame is one inbound request over the chat socket.
type ClientFrame struct {
	Message        string `json:"message"`
	Model          string `json:"model"`
	ConversationID string `json:"conversation_id,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	Style          string `json:"style,omitempty"`
	UseMemory      *bool  `json:"use_memory,omitempty"`
	RAGLimit       int    `json:"rag_limit,omitempty"`
}

// useMemory defaults to true when the field is absent.
func (f *ClientFrame) useMemory() bool {
	return f.UseMemory == nil || *f.UseMemory
}

const (
	FrameToken = "token"
	FrameDone  = "done"
	FrameError = "error"
)

// TokenFrame carries one incremental content delta.
type TokenFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// DoneFrame terminates a successful turn. Sources is always present,
// possibly empty.
type DoneFrame struct {
	Type    string            `json:"type"`
	Sources []types.SourceRef `json:"sources"`
}

// ErrorFrame terminates a failed turn; the socket stays open.
type ErrorFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func tokenFrame(content string) TokenFrame {
	return TokenFrame{Type: FrameToken, Content: content}
}

func doneFrame(sources []types.SourceRef) DoneFrame {
	if sources == nil {
		sources = []types.SourceRef{}
	}
	return DoneFrame{Type: FrameDone, Sources: sources}
}

func errorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Content: msg}
}

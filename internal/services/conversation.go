package services

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"

	chatrepo "github.com/yungbote/mentat-backend/internal/data/repos/chat"
	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/llm"
)

// titleMaxChars caps the fallback title when the LLM cannot produce one.
const titleMaxChars = 50

// ConversationMeta is the list view of a conversation.
type ConversationMeta struct {
	types.Conversation
	MessageCount int64 `json:"message_count"`
}

// ConversationWithMessages is the detail view.
type ConversationWithMessages struct {
	types.Conversation
	Messages []*types.Message `json:"messages"`
}

type ConversationService interface {
	List(ctx context.Context, limit, offset int) ([]ConversationMeta, error)
	Create(ctx context.Context, title, model string) (*types.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*ConversationWithMessages, error)
	Update(ctx context.Context, id uuid.UUID, title, model *string) (*types.Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, sources []types.SourceRef) (*types.Message, error)
	Search(ctx context.Context, query string) ([]ConversationMeta, error)
	// GenerateTitle asks the LLM for a 3-6 word title for the opening
	// message; on failure it truncates the message at a word boundary.
	GenerateTitle(ctx context.Context, model, firstMessage string) string
}

type conversationService struct {
	log      *logger.Logger
	convos   chatrepo.ConversationRepo
	messages chatrepo.MessageRepo
	llm      llm.Client
}

func NewConversationService(log *logger.Logger, convos chatrepo.ConversationRepo, messages chatrepo.MessageRepo, llmClient llm.Client) ConversationService {
	return &conversationService{
		log:      log.With("service", "ConversationService"),
		convos:   convos,
		messages: messages,
		llm:      llmClient,
	}
}

func (s *conversationService) withCounts(dbc dbctx.Context, convos []*types.Conversation) ([]ConversationMeta, error) {
	ids := make([]uuid.UUID, len(convos))
	for i, c := range convos {
		ids[i] = c.ID
	}
	counts, err := s.messages.CountForConversations(dbc, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationMeta, len(convos))
	for i, c := range convos {
		out[i] = ConversationMeta{Conversation: *c, MessageCount: counts[c.ID]}
	}
	return out, nil
}

func (s *conversationService) List(ctx context.Context, limit, offset int) ([]ConversationMeta, error) {
	dbc := dbctx.Context{Ctx: ctx}
	convos, err := s.convos.List(dbc, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.withCounts(dbc, convos)
}

func (s *conversationService) Create(ctx context.Context, title, model string) (*types.Conversation, error) {
	c := &types.Conversation{Title: strings.TrimSpace(title), Model: strings.TrimSpace(model)}
	if c.Title == "" {
		c.Title = "New Conversation"
	}
	if err := s.convos.Create(dbctx.Context{Ctx: ctx}, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *conversationService) Get(ctx context.Context, id uuid.UUID) (*ConversationWithMessages, error) {
	dbc := dbctx.Context{Ctx: ctx}
	c, err := s.convos.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListForConversation(dbc, id, 0)
	if err != nil {
		return nil, err
	}
	return &ConversationWithMessages{Conversation: *c, Messages: msgs}, nil
}

func (s *conversationService) Update(ctx context.Context, id uuid.UUID, title, model *string) (*types.Conversation, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.convos.Update(dbc, id, title, model); err != nil {
		return nil, err
	}
	return s.convos.Get(dbc, id)
}

func (s *conversationService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.convos.Delete(dbctx.Context{Ctx: ctx}, id)
}

// AddMessage appends a turn and bumps the conversation's updated_at so it
// sorts to the top of the list.
func (s *conversationService) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, sources []types.SourceRef) (*types.Message, error) {
	dbc := dbctx.Context{Ctx: ctx}
	m := &types.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	var err error
	if role == types.RoleAssistant {
		err = s.messages.AppendWithSources(dbc, m, sources)
	} else {
		err = s.messages.Append(dbc, m)
	}
	if err != nil {
		return nil, err
	}
	if err := s.convos.Touch(dbc, conversationID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *conversationService) Search(ctx context.Context, query string) ([]ConversationMeta, error) {
	dbc := dbctx.Context{Ctx: ctx}
	convos, err := s.convos.Search(dbc, query, 50)
	if err != nil {
		return nil, err
	}
	return s.withCounts(dbc, convos)
}

func (s *conversationService) GenerateTitle(ctx context.Context, model, firstMessage string) string {
	if s.llm != nil {
		title, err := s.llm.GenerateText(ctx, model, []llm.Message{
			{Role: "system", Content: "You title conversations. Reply with a 3-6 word title only, no quotes, no punctuation at the end."},
			{Role: "user", Content: firstMessage},
		})
		if err == nil {
			title = strings.Trim(strings.TrimSpace(title), `"`)
			if title != "" && len([]rune(title)) <= 80 {
				return title
			}
		} else {
			s.log.Warn("title generation failed, falling back to truncation", "error", err)
		}
	}
	return TruncateTitle(firstMessage, titleMaxChars)
}

// TruncateTitle cuts at a word boundary within max runes, never splitting
// a UTF-8 sequence mid-character.
func TruncateTitle(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := r[:max]
	// Back up to the last space so the cut lands between words.
	last := -1
	for i, c := range cut {
		if unicode.IsSpace(c) {
			last = i
		}
	}
	if last > 0 {
		cut = cut[:last]
	}
	return strings.TrimRight(string(cut), " \t\n")
}

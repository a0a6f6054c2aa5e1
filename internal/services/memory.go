package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	chatrepo "github.com/yungbote/mentat-backend/internal/data/repos/chat"
	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

const memoryContextPrefix = "Here are some things you remember about the user:\n"

type MemoryService interface {
	Add(ctx context.Context, content, category string, sourceConversationID *uuid.UUID) (*types.MemoryItem, error)
	List(ctx context.Context, category string) ([]*types.MemoryItem, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search matches the query as a substring of memory contents.
	Search(ctx context.Context, query string) ([]*types.MemoryItem, error)
	// ClearAll wipes the whole memory store, returning the removed count.
	ClearAll(ctx context.Context) (int64, error)
	// RelevantMemories ranks stored items against the given text by word
	// overlap weighted by each item's relevance score.
	RelevantMemories(ctx context.Context, contextText string, limit int) ([]*types.MemoryItem, error)
	// BuildMemoryContext renders the top memories as a bulleted prompt
	// block, or "" when nothing applies.
	BuildMemoryContext(ctx context.Context, contextText string, limit int) string
}

type memoryService struct {
	log      *logger.Logger
	memories chatrepo.MemoryRepo
}

func NewMemoryService(log *logger.Logger, memories chatrepo.MemoryRepo) MemoryService {
	return &memoryService{log: log.With("service", "MemoryService"), memories: memories}
}

func (s *memoryService) Add(ctx context.Context, content, category string, sourceConversationID *uuid.UUID) (*types.MemoryItem, error) {
	item := &types.MemoryItem{
		Content:              strings.TrimSpace(content),
		Category:             category,
		SourceConversationID: sourceConversationID,
	}
	if err := s.memories.Create(dbctx.Context{Ctx: ctx}, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *memoryService) List(ctx context.Context, category string) ([]*types.MemoryItem, error) {
	return s.memories.List(dbctx.Context{Ctx: ctx}, category, 0)
}

func (s *memoryService) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return s.memories.Update(dbctx.Context{Ctx: ctx}, id, updates)
}

func (s *memoryService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.memories.Delete(dbctx.Context{Ctx: ctx}, id)
}

func (s *memoryService) Search(ctx context.Context, query string) ([]*types.MemoryItem, error) {
	return s.memories.Search(dbctx.Context{Ctx: ctx}, query, 50)
}

func (s *memoryService) ClearAll(ctx context.Context) (int64, error) {
	return s.memories.ClearAll(dbctx.Context{Ctx: ctx})
}

func (s *memoryService) RelevantMemories(ctx context.Context, contextText string, limit int) ([]*types.MemoryItem, error) {
	if limit <= 0 {
		limit = 5
	}
	items, err := s.memories.List(dbctx.Context{Ctx: ctx}, "", 0)
	if err != nil {
		return nil, err
	}

	ctxWords := wordSet(contextText)
	type scored struct {
		item  *types.MemoryItem
		score float64
	}
	var ranked []scored
	for _, item := range items {
		score := overlapScore(ctxWords, item.Content) * item.RelevanceScore
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{item: item, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*types.MemoryItem, len(ranked))
	for i, r := range ranked {
		out[i] = r.item
	}
	return out, nil
}

func (s *memoryService) BuildMemoryContext(ctx context.Context, contextText string, limit int) string {
	items, err := s.RelevantMemories(ctx, contextText, limit)
	if err != nil {
		s.log.Warn("memory retrieval failed, continuing without memories", "error", err)
		return ""
	}
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(memoryContextPrefix)
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if w != "" {
			out[w] = true
		}
	}
	return out
}

// overlapScore is the fraction of the memory's words that appear in the
// context.
func overlapScore(ctxWords map[string]bool, content string) float64 {
	words := strings.Fields(strings.ToLower(content))
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if ctxWords[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

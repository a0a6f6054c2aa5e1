package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/infinity"
)

// DefaultLimit is the top-K used when the caller passes no limit.
const DefaultLimit = 5

// Searcher is the slice of the search repo the retriever needs.
type Searcher interface {
	SearchChunksByEmbedding(dbc dbctx.Context, embedding []float32, limit int, filters store.SearchFilters) ([]store.ChunkHit, error)
}

// Retriever turns a user query into ranked transcript context for prompt
// assembly.
type Retriever interface {
	RetrieveContext(ctx context.Context, query string, limit int, channelID string) ([]store.ChunkHit, error)
	// ContextAndSources formats hits into the prompt context block and the
	// source list. Retrieval failure degrades to ("", nil): chat answers
	// without context rather than failing the turn.
	ContextAndSources(ctx context.Context, query string, limit int) (string, []types.SourceRef)
}

type retriever struct {
	log      *logger.Logger
	embedder infinity.Client
	search   Searcher
}

func NewRetriever(log *logger.Logger, embedder infinity.Client, search Searcher) Retriever {
	return &retriever{
		log:      log.With("service", "Retriever"),
		embedder: embedder,
		search:   search,
	}
}

func (r *retriever) RetrieveContext(ctx context.Context, query string, limit int, channelID string) ([]store.ChunkHit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.search.SearchChunksByEmbedding(
		dbctx.Context{Ctx: ctx},
		embedding,
		limit,
		store.SearchFilters{Channel: channelID},
	)
}

// ExtractSources dedups hits by video id, keeping the first (highest
// ranked) occurrence and the original order.
func ExtractSources(hits []store.ChunkHit) []types.SourceRef {
	seen := map[string]bool{}
	var out []types.SourceRef
	for _, h := range hits {
		if seen[h.VideoID] {
			continue
		}
		seen[h.VideoID] = true
		out = append(out, types.SourceRef{
			VideoID:        h.VideoID,
			Title:          h.VideoTitle,
			URL:            h.VideoURL,
			RelevanceScore: h.Score,
		})
	}
	return out
}

func (r *retriever) ContextAndSources(ctx context.Context, query string, limit int) (string, []types.SourceRef) {
	hits, err := r.RetrieveContext(ctx, query, limit, "")
	if err != nil {
		r.log.Warn("retrieval failed, continuing without context", "error", err)
		return "", nil
	}
	if len(hits) == 0 {
		return "", nil
	}
	return FormatContext(hits), ExtractSources(hits)
}

// FormatContext renders hits into the block embedded in the chat prompt.
func FormatContext(hits []store.ChunkHit) string {
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		var b strings.Builder
		fmt.Fprintf(&b, "[Video: %q]\n", h.VideoTitle)
		fmt.Fprintf(&b, "Channel: %s\n", h.ChannelName)
		fmt.Fprintf(&b, "Relevance: %.3f\n\n", h.Score)
		fmt.Fprintf(&b, "Transcript: %s", h.Text)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

package app

import (
	"github.com/yungbote/mentat-backend/internal/archive"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/gcs"
	"github.com/yungbote/mentat-backend/internal/platform/infinity"
	"github.com/yungbote/mentat-backend/internal/platform/llm"
	"github.com/yungbote/mentat-backend/internal/platform/redisbus"
	"github.com/yungbote/mentat-backend/internal/rag"
	"github.com/yungbote/mentat-backend/internal/services"
	"github.com/yungbote/mentat-backend/internal/services/style"
)

// Clients are the outbound platform connections.
type Clients struct {
	Archive  gcs.ArchiveStore
	Embedder infinity.Client
	LLM      llm.Client
	Cache    redisbus.Cache
}

func wireClients(log *logger.Logger) (Clients, error) {
	archiveStore, err := gcs.NewArchiveStore(log)
	if err != nil {
		return Clients{}, err
	}
	embedder, err := infinity.NewClient(log)
	if err != nil {
		return Clients{}, err
	}
	llmClient, err := llm.NewClient(log)
	if err != nil {
		return Clients{}, err
	}
	cache, err := redisbus.NewCache(log)
	if err != nil {
		return Clients{}, err
	}
	return Clients{
		Archive:  archiveStore,
		Embedder: embedder,
		LLM:      llmClient,
		Cache:    cache,
	}, nil
}

type Services struct {
	Archives      archive.Reader
	Retriever     rag.Retriever
	Conversations services.ConversationService
	Memory        services.MemoryService
	Analyze       services.AnalyzeService
	Styles        *style.Registry
}

func wireServices(log *logger.Logger, repos Repos, clients Clients) Services {
	archives := archive.NewReader(log, clients.Archive)
	return Services{
		Archives:      archives,
		Retriever:     rag.NewRetriever(log, clients.Embedder, repos.Search),
		Conversations: services.NewConversationService(log, repos.Conversations, repos.Messages, clients.LLM),
		Memory:        services.NewMemoryService(log, repos.Memories),
		Analyze:       services.NewAnalyzeService(log, repos.Videos, repos.ChannelTopics, archives, clients.Cache),
		Styles:        style.NewRegistry(log),
	}
}

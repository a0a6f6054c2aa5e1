package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/mentat-backend/internal/chat"
	httpx "github.com/yungbote/mentat-backend/internal/http"
	httpH "github.com/yungbote/mentat-backend/internal/http/handlers"
	"github.com/yungbote/mentat-backend/internal/observability"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

func wireProbes(db *gorm.DB, clients Clients) map[string]httpH.Probe {
	return map[string]httpH.Probe{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis":      clients.Cache.Ping,
		"blob_store": clients.Archive.Ping,
		"embedding":  clients.Embedder.Ping,
	}
}

func wireRouterConfig(log *logger.Logger, db *gorm.DB, repos Repos, svcs Services, clients Clients, metrics *observability.Metrics) httpx.RouterConfig {
	probes := wireProbes(db, clients)

	chatDeps := chat.Deps{
		Log:           log,
		Conversations: svcs.Conversations,
		Memory:        svcs.Memory,
		Styles:        svcs.Styles,
		Retriever:     svcs.Retriever,
		LLM:           clients.LLM,
		Metrics:       metrics,
	}

	return httpx.RouterConfig{
		Log:     log,
		Metrics: metrics,

		HealthHandler:       httpH.NewHealthHandler(log, probes),
		StatsHandler:        httpH.NewStatsHandler(log, repos.Videos, probes),
		SearchHandler:       httpH.NewSearchHandler(log, repos.Search),
		AnalyzeHandler:      httpH.NewAnalyzeHandler(log, svcs.Analyze),
		VideoHandler:        httpH.NewVideoHandler(log, repos.Videos, repos.Chunks),
		ConversationHandler: httpH.NewConversationHandler(log, svcs.Conversations),
		MemoryHandler:       httpH.NewMemoryHandler(log, svcs.Memory),
		ChatWSHandler:       httpH.NewChatWSHandler(log, chatDeps),
	}
}

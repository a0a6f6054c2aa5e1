package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mentat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mentat-backend/internal/http/middleware"
	"github.com/yungbote/mentat-backend/internal/observability"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	HealthHandler       *httpH.HealthHandler
	StatsHandler        *httpH.StatsHandler
	SearchHandler       *httpH.SearchHandler
	AnalyzeHandler      *httpH.AnalyzeHandler
	VideoHandler        *httpH.VideoHandler
	ConversationHandler *httpH.ConversationHandler
	MemoryHandler       *httpH.MemoryHandler
	ChatWSHandler       *httpH.ChatWSHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("mentat-backend"))
	r.Use(httpMW.Correlation())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}

	if cfg.StatsHandler != nil {
		r.GET("/stats", cfg.StatsHandler.GetStats)
		r.GET("/stats/stream", cfg.StatsHandler.StreamStats)
	}

	if cfg.SearchHandler != nil {
		r.POST("/cache/search", cfg.SearchHandler.Search)
	}

	if cfg.AnalyzeHandler != nil {
		r.POST("/youtube/analyze", cfg.AnalyzeHandler.Analyze)
	}

	if cfg.VideoHandler != nil {
		r.GET("/videos/:id", cfg.VideoHandler.GetVideo)
		r.GET("/videos/:id/chunks", cfg.VideoHandler.GetVideoChunks)
	}

	if cfg.ConversationHandler != nil {
		r.GET("/conversations", cfg.ConversationHandler.List)
		r.POST("/conversations", cfg.ConversationHandler.Create)
		r.GET("/conversations/search", cfg.ConversationHandler.Search)
		r.GET("/conversations/:id", cfg.ConversationHandler.Get)
		r.PATCH("/conversations/:id", cfg.ConversationHandler.Update)
		r.DELETE("/conversations/:id", cfg.ConversationHandler.Delete)
	}

	if cfg.MemoryHandler != nil {
		r.GET("/memory", cfg.MemoryHandler.List)
		r.POST("/memory", cfg.MemoryHandler.Add)
		r.GET("/memory/search", cfg.MemoryHandler.Search)
		r.DELETE("/memory", cfg.MemoryHandler.ClearAll)
		r.PATCH("/memory/:id", cfg.MemoryHandler.Update)
		r.DELETE("/memory/:id", cfg.MemoryHandler.Delete)
	}

	if cfg.ChatWSHandler != nil {
		r.GET("/chat/ws/chat", cfg.ChatWSHandler.Chat)
		r.GET("/chat/ws/rag-chat", cfg.ChatWSHandler.RAGChat)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/mentat-backend/internal/backfill"
	"github.com/yungbote/mentat-backend/internal/chunker"
	"github.com/yungbote/mentat-backend/internal/db"
	httpx "github.com/yungbote/mentat-backend/internal/http"
	"github.com/yungbote/mentat-backend/internal/observability"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Clients  Clients
	Metrics  *observability.Metrics
	Server   *httpx.Server

	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	cfg := LoadConfig(theDB, log)

	clients, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	metrics := observability.NewMetrics(nil)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "mentat-backend",
		Environment: logMode,
	})

	repos := wireRepos(theDB, log, cfg.EmbeddingDimension, clients.Embedder)
	svcs := wireServices(log, repos, clients)
	server := httpx.NewServer(wireRouterConfig(log, theDB, repos, svcs, clients, metrics))

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        repos,
		Services:     svcs,
		Clients:      clients,
		Metrics:      metrics,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// NewBackfillWorker builds the pipeline worker against the app's wiring.
// progress may be nil.
func (a *App) NewBackfillWorker(progress chan<- backfill.ProgressEvent) (*backfill.Worker, error) {
	return backfill.NewWorker(backfill.Deps{
		Log:      a.Log,
		Videos:   a.Repos.Videos,
		Chunks:   a.Repos.Chunks,
		Pipeline: a.Repos.Pipeline,
		Archives: a.Services.Archives,
		Embedder: a.Clients.Embedder,
		Metrics:  a.Metrics,
		ChunkCfg: chunker.ConfigFromEnv(a.Log),
		Progress: progress,
	})
}

func (a *App) Run() error {
	a.Log.Info("HTTP server starting", "addr", a.Cfg.ServerAddr)
	return a.Server.Start(a.Cfg.ServerAddr)
}

func (a *App) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("server shutdown", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/analysis"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/credits"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/dispatch"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/indexing"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/projects"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/render"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/config"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/metrics"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/middleware"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/server/respond"
	"github.com/scaleupwith-ai/ai-videographer-sub002/internal/shared/storage/db"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	// Dependencies
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var (
		analysisRepo analysis.Repo
		projectRepo  projects.Repo
		renderRepo   render.Repo
		creditSvc    *credits.Service
	)
	if sqlDB != nil {
		analysisRepo = &analysis.PGRepo{DB: sqlDB}
		projectRepo = &projects.PGRepo{DB: sqlDB}
		renderRepo = &render.PGRepo{DB: sqlDB}
		creditSvc = credits.NewServiceWithStore(credits.NewPGStore(sqlDB), cfg.CreditsStartingGrant)
	} else {
		analysisRepo = analysis.NewMemoryRepo()
		projectRepo = projects.NewMemoryRepo()
		renderRepo = render.NewMemoryRepo()
		creditSvc = credits.NewService(cfg.CreditsStartingGrant)
	}

	var indexingClient indexing.Client
	if client, err := indexing.NewHTTPClient(cfg.IndexingAPIURL, cfg.IndexingAPIKey, cfg.IndexingIndexID); err != nil {
		log.Printf("indexing client not configured: %v", err)
	} else {
		indexingClient = client
	}

	analysisSvc := &analysis.Service{
		Repo:     analysisRepo,
		Indexing: indexingClient,
	}
	if cfg.WorkerLoopbackURL != "" && cfg.WorkerSharedSecret != "" {
		analysisSvc.Trigger = analysis.NewLoopbackTrigger(cfg.WorkerLoopbackURL, cfg.WorkerSharedSecret)
	} else {
		analysisSvc.Trigger = &analysis.GoTrigger{Processor: analysisSvc}
	}
	if cfg.RedisURL != "" {
		if sink, err := analysis.NewRedisSummarySink(cfg.RedisURL); err != nil {
			log.Printf("summary cache not configured: %v", err)
		} else {
			analysisSvc.Summary = sink
		}
	}

	cascade := dispatch.NewCascade(
		dispatch.NewBatchTier(cfg.BatchJobQueue, cfg.BatchJobDefinition, cfg.BatchRegion),
		dispatch.NewQueueTier(cfg.RedisURL),
		dispatch.NewDirectTier(cfg.RenderWorkerURL, cfg.WorkerSharedSecret),
		dispatch.NewDeferredTier(),
	)
	renderSvc := render.NewService(renderRepo, projectRepo, creditSvc, cascade)

	analysisHandler := analysis.NewHandler(analysisSvc)
	renderHandler := render.NewHandler(renderSvc)
	creditHandler := credits.NewHandler(creditSvc)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	authed := api.Group("")
	authed.Use(middleware.Auth(cfg.Env))
	analysisHandler.RegisterRoutes(authed)
	renderHandler.RegisterRoutes(authed)
	creditHandler.RegisterRoutes(authed)

	internal := r.Group("/internal")
	internal.Use(middleware.WorkerSecret(cfg.WorkerSharedSecret))
	analysisHandler.RegisterInternalRoutes(internal)
	renderHandler.RegisterInternalRoutes(internal)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

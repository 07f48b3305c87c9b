package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/threatforge/internal/api/handler"
	"github.com/timmy/threatforge/internal/api/middleware"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/metrics"
	"github.com/timmy/threatforge/internal/service"
)

// Deps are the services the router dispatches to.
type Deps struct {
	Config       *config.Config
	ThreatModels *service.ThreatModelService
	Jobs         *service.JobService
	Files        *service.FileService
	Scenarios    *service.ScenarioService
	Logger       *logger.Logger

	// Metrics and Gatherer are optional; /metrics is mounted only when both are set.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(d Deps) (*gin.Engine, error) {
	switch d.Config.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(d.Logger))
	r.Use(middleware.CORS(d.Config.Server.CORS))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}

	var files service.FileLookup
	if d.Files != nil {
		files = d.Files
	}

	healthHandler := handler.NewHealthHandler()
	threatHandler := handler.NewThreatModelHandler(d.ThreatModels)
	jobHandler := handler.NewJobHandler(d.Jobs, files, d.Config.Jobs)
	fileHandler := handler.NewFileHandler(d.Files, d.Config.Uploads.MaxSize)
	scenarioHandler := handler.NewScenarioHandler(d.Scenarios)
	adminHandler := handler.NewAdminHandler(d.Jobs, d.Files, d.Config.Jobs, d.Config.Uploads)

	r.GET("/", healthHandler.Root)
	r.GET("/health", healthHandler.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", healthHandler.Health)

		tm := apiGroup.Group("/threat-model")
		{
			tm.POST("/generate", threatHandler.Generate)
			tm.POST("/estimate-cost", threatHandler.EstimateCost)
			tm.GET("/providers", threatHandler.Providers)

			tm.POST("/generate-async", jobHandler.Submit)
			tm.GET("/jobs", jobHandler.List)
			tm.GET("/jobs/:job_id", jobHandler.Get)
			tm.DELETE("/jobs/:job_id", jobHandler.Cancel)

			tm.POST("/upload", fileHandler.Upload)
			tm.GET("/files", fileHandler.List)
			tm.DELETE("/files/:file_id", fileHandler.Delete)
		}

		sc := apiGroup.Group("/scenarios")
		{
			sc.POST("/generate", scenarioHandler.Generate)
			sc.POST("/estimate-cost", scenarioHandler.EstimateCost)
			sc.POST("/reroll-section", scenarioHandler.RerollSection)
			sc.POST("/reroll", scenarioHandler.RerollSection)
			sc.GET("/providers", scenarioHandler.Providers)
		}

		admin := apiGroup.Group("/admin")
		{
			admin.POST("/jobs/evict", adminHandler.EvictJobs)
			admin.GET("/jobs/stats", adminHandler.JobStats)
			admin.POST("/cache/evict", adminHandler.EvictCache)
			admin.GET("/cache/stats", adminHandler.CacheStats)
			admin.POST("/files/cleanup", adminHandler.CleanupFiles)
			admin.GET("/files/cleanup", adminHandler.CleanupStatus)
			admin.GET("/files/stats", adminHandler.FileStats)
			admin.GET("/files/:file_id/integrity", adminHandler.FileIntegrity)
		}
	}

	if d.Metrics != nil && d.Gatherer != nil && d.Config.Metrics.Enabled {
		path := d.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	return r, nil
}

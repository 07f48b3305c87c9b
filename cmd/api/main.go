package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/timmy/threatforge/internal/api"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/metrics"
	"github.com/timmy/threatforge/internal/repository"
	"github.com/timmy/threatforge/internal/service"
	"github.com/timmy/threatforge/internal/storage"
)

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	log := logger.NewDefault()
	logger.SetDefaultLogger(log)
	defer func() { _ = logger.Sync() }()

	ctx := logger.SetComponent(log.WithContext(context.Background()), "api")

	db, err := repository.InitDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	blobs, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	if b, ok := blobs.(bucketEnsurer); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			logger.Fatal("Failed to ensure storage bucket: %v", err)
		}
	}

	clock := service.SystemClock{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	providers := service.NewProviderRegistryFromConfig(cfg.LLM)
	if len(providers.Available()) == 0 {
		logger.CtxWarn(ctx, "No LLM providers configured; generation requests will fail")
	} else {
		logger.CtxInfo(ctx, "LLM providers available: %v", providers.Available())
	}

	files := service.NewFileService(repository.NewFileRepository(db), blobs, cfg.Uploads, clock)
	jobs := service.NewJobService(
		service.NewJobStore(clock),
		service.NewResultCache(clock),
		providers,
		files,
		cfg.Jobs,
		service.WithClock(clock),
		service.WithRecorder(collector),
	)
	collector.RegisterGaugeFunc("jobs_active", "Jobs currently pending or processing.", func() float64 {
		return float64(jobs.ActiveJobs())
	})
	collector.RegisterGaugeFunc("cache_entries", "Entries held in the result cache.", func() float64 {
		return float64(jobs.CacheStats().Entries)
	})

	router, err := api.SetupRouter(api.Deps{
		Config:       cfg,
		ThreatModels: service.NewThreatModelService(providers, files, clock),
		Jobs:         jobs,
		Files:        files,
		Scenarios:    service.NewScenarioService(providers),
		Logger:       log,
		Metrics:      collector,
		Gatherer:     reg,
	})
	if err != nil {
		logger.Fatal("Failed to set up router: %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.CtxInfo(ctx, "Starting API server on port %d (mode=%s)", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.CtxInfo(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.CtxError(ctx, "Server forced to shutdown: %v", err)
	}
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		logger.CtxError(ctx, "Jobs did not drain: %v", err)
	}

	logger.CtxInfo(ctx, "Server exited")
}

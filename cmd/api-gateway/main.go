package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/helpdesk-datagen/api/swagger"
	"github.com/noah-isme/helpdesk-datagen/internal/handler"
	internalmiddleware "github.com/noah-isme/helpdesk-datagen/internal/middleware"
	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/internal/repository"
	"github.com/noah-isme/helpdesk-datagen/internal/service"
	"github.com/noah-isme/helpdesk-datagen/pkg/cache"
	"github.com/noah-isme/helpdesk-datagen/pkg/config"
	"github.com/noah-isme/helpdesk-datagen/pkg/database"
	"github.com/noah-isme/helpdesk-datagen/pkg/jobs"
	"github.com/noah-isme/helpdesk-datagen/pkg/logger"
	corsmiddleware "github.com/noah-isme/helpdesk-datagen/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/helpdesk-datagen/pkg/middleware/requestid"
	"github.com/noah-isme/helpdesk-datagen/pkg/storage"
)

// @title Helpdesk Datagen API
// @version 1.0.0
// @description Synthesises helpdesk tickets and time entries that respect technician capacity
// @BasePath /
// @schemes http

const tokenIssuer = "helpdesk-datagen"

type runRepository interface {
	Create(ctx context.Context, run *models.GenerationRun) error
	GetByID(ctx context.Context, id string) (*models.GenerationRun, error)
	Update(ctx context.Context, id string, params repository.UpdateGenerationRunParams) error
	ListQueued(ctx context.Context, limit int) ([]models.GenerationRun, error)
}

type datasetSaver interface {
	Save(ctx context.Context, runID string, tickets []models.Ticket, entries []models.TimeEntry) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	var (
		runs     runRepository
		datasets datasetSaver
	)
	if cfg.Database.Enabled {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		runs = repository.NewGenerationRunRepository(db)
		datasets = repository.NewDatasetRepository(db)
		logr.Info("run storage: postgres", zap.String("database", cfg.Database.Name))
	} else {
		runs = repository.NewMemoryRunStore(cfg.Runs.ResultTTL)
		logr.Info("run storage: memory", zap.Duration("ttl", cfg.Runs.ResultTTL))
	}

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, run cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Redis.CacheTTL, logr, cacheRepo != nil)

	files, err := storage.NewLocalStorage(cfg.Data.OutputDir)
	if err != nil {
		logr.Fatal("failed to prepare output directory", zap.Error(err))
	}
	signer := storage.NewArtifactSigner(cfg.Auth.Secret, cfg.Runs.ResultTTL)
	exporter := service.NewExportService(files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Runs.ResultTTL,
	}, logr, nil, nil)

	seeds := repository.NewSeedDataRepository(cfg.Data.SeedDir, logr)
	generator := service.NewGenerationService(cfg.Generation, seeds, cfg.Data.ProfilesFile, metrics, validate, logr)

	worker := service.NewRunWorker(runs, datasets, generator, exporter, cacheSvc, metrics, cfg.Runs.Retries, logr)
	queue := jobs.NewQueue("generation-runs", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Runs.Workers,
		BufferSize: cfg.Runs.BufferSize,
		MaxRetries: cfg.Runs.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	runSvc := service.NewRunService(runs, queue, exporter, cacheSvc, metrics, validate, logr, service.RunServiceConfig{
		ResultTTL:       cfg.Runs.ResultTTL,
		CleanupInterval: time.Hour,
	})
	runSvc.RecoverPendingJobs(ctx)
	runSvc.StartCleanup(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	runHandler := handler.NewGenerationRunHandler(runSvc)
	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/system", metricsHandler.System)
	api.GET("/export/:token", runHandler.Download)

	read := []gin.HandlerFunc{}
	write := []gin.HandlerFunc{}
	if cfg.Auth.Enabled {
		tokens := service.NewTokenService(cfg.Auth.Secret, tokenIssuer, time.Hour)
		read = append(read, internalmiddleware.JWT(tokens), internalmiddleware.RequireScope(service.ScopeRunsRead))
		write = append(write, internalmiddleware.JWT(tokens), internalmiddleware.RequireScope(service.ScopeRunsWrite))
	}
	api.Group("/runs", write...).POST("", runHandler.CreateRun)
	readRuns := api.Group("/runs", read...)
	readRuns.GET("/:id", runHandler.GetRun)
	readRuns.GET("/:id/stats", runHandler.GetStats)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/helpdesk-datagen/internal/dto"
	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/internal/repository"
	appErrors "github.com/noah-isme/helpdesk-datagen/pkg/errors"
	"github.com/noah-isme/helpdesk-datagen/pkg/jobs"
)

// JobTypeGenerate tags queue jobs that synthesise a dataset.
const JobTypeGenerate = "generate"

type runStore interface {
	Create(ctx context.Context, run *models.GenerationRun) error
	GetByID(ctx context.Context, id string) (*models.GenerationRun, error)
	Update(ctx context.Context, id string, params repository.UpdateGenerationRunParams) error
	ListQueued(ctx context.Context, limit int) ([]models.GenerationRun, error)
}

type datasetStore interface {
	Save(ctx context.Context, runID string, tickets []models.Ticket, entries []models.TimeEntry) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// RunServiceConfig governs queue recovery and artifact cleanup.
type RunServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// RunDownload is a resolved artifact ready to stream.
type RunDownload struct {
	File      *os.File
	Filename  string
	Format    string
	ExpiresAt time.Time
}

// RunService manages the generation run lifecycle exposed over HTTP.
type RunService struct {
	repo      runStore
	queue     jobDispatcher
	exporter  *ExportService
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RunServiceConfig
	now       func() time.Time
}

// NewRunService constructs the run service. cache and metrics may be nil.
func NewRunService(repo runStore, queue jobDispatcher, exporter *ExportService, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg RunServiceConfig) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &RunService{
		repo:      repo,
		queue:     queue,
		exporter:  exporter,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateRun validates the request, persists a queued run and hands it to the worker pool.
func (s *RunService) CreateRun(ctx context.Context, req dto.GenerateRequest) (*dto.RunCreatedResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "tickets must be between 1 and 10000")
	}
	seed := s.now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	run := &models.GenerationRun{
		Status:      models.RunStatusQueued,
		TicketCount: req.Tickets,
		Seed:        seed,
		IncludePDF:  req.IncludePDF,
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create generation run")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: JobTypeGenerate}); err != nil {
		status := models.RunStatusFailed
		msg := "failed to enqueue run"
		now := s.now().UTC()
		if updateErr := s.repo.Update(ctx, run.ID, repository.UpdateGenerationRunParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(updateErr))
		}
		s.metrics.RecordRunStatus(models.RunStatusFailed)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "run queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation run")
	}
	s.metrics.RecordRunStatus(models.RunStatusQueued)
	s.logger.Info("run queued", zap.String("run_id", run.ID), zap.Int64("seed", seed), zap.Int("tickets", req.Tickets))
	return &dto.RunCreatedResponse{ID: run.ID, Status: run.Status, Seed: seed}, nil
}

// GetRun returns run status, summary and artifacts.
func (s *RunService) GetRun(ctx context.Context, id string) (*dto.RunResponse, error) {
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewRunResponse(run), nil
}

// GetStats returns per-technician stats for a finished run.
func (s *RunService) GetStats(ctx context.Context, id string) (*dto.RunStatsResponse, error) {
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusFinished {
		return nil, appErrors.ErrRunNotFinished
	}
	stats := run.Summary.TechStats
	if stats == nil {
		stats = []models.TechStats{}
	}
	mapping := run.Summary.ProfileMapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	return &dto.RunStatsResponse{ID: run.ID, Stats: stats, ProfileMapping: mapping}, nil
}

// ResolveDownload validates a token and opens the artifact it names.
func (s *RunService) ResolveDownload(ctx context.Context, token string) (*RunDownload, error) {
	claims, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	run, err := s.loadRun(ctx, claims.RunID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusFinished {
		return nil, appErrors.ErrRunNotFinished
	}
	var artifact *models.Artifact
	for i := range run.Artifacts {
		if run.Artifacts[i].RelativePath == claims.Path {
			artifact = &run.Artifacts[i]
			break
		}
	}
	if artifact == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match a run artifact")
	}
	file, err := s.exporter.Open(artifact.RelativePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "artifact expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open artifact")
	}
	return &RunDownload{
		File:      file,
		Filename:  filepath.Base(artifact.RelativePath),
		Format:    artifact.Format,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// RecoverPendingJobs replays queued runs after a restart.
func (s *RunService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued runs", zap.Error(err))
		return
	}
	for _, run := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: JobTypeGenerate}); err != nil {
			s.logger.Warn("failed to requeue pending run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired artifacts periodically.
func (s *RunService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *RunService) cleanupExpired() {
	deleted, err := s.exporter.Cleanup(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("artifact cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired artifacts removed", zap.Int("files", len(deleted)))
	}
}

func (s *RunService) loadRun(ctx context.Context, id string) (*models.GenerationRun, error) {
	if run, ok := s.cache.GetRun(ctx, id); ok {
		return run, nil
	}
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "generation run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation run")
	}
	s.cache.PutRun(ctx, run)
	return run, nil
}

// RunWorker bridges queue jobs to generation, persistence and export.
type RunWorker struct {
	repo       runStore
	datasets   datasetStore
	generator  *GenerationService
	exporter   *ExportService
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
	now        func() time.Time
}

// NewRunWorker constructs a worker. datasets, cache and metrics may be nil.
func NewRunWorker(repo runStore, datasets datasetStore, generator *GenerationService, exporter *ExportService, cache *CacheService, metrics *MetricsService, maxRetries int, logger *zap.Logger) *RunWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RunWorker{
		repo:       repo,
		datasets:   datasets,
		generator:  generator,
		exporter:   exporter,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Handle processes a queue job. A panic while generating is recorded as a failed attempt.
func (w *RunWorker) Handle(ctx context.Context, job jobs.Job) (err error) {
	run, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			w.logger.Warn("dropping job for unknown run", zap.String("run_id", job.ID))
			return nil
		}
		return err
	}
	if run.Status == models.RunStatusFinished || run.Status == models.RunStatusFailed {
		return nil
	}

	started := w.now().UTC()
	running := models.RunStatusRunning
	if err := w.repo.Update(ctx, run.ID, repository.UpdateGenerationRunParams{
		Status:    &running,
		StartedAt: &started,
	}); err != nil {
		return err
	}
	w.metrics.RecordRunStatus(models.RunStatusRunning)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run %s panicked: %v", run.ID, r)
			w.logger.Error("run worker panic", zap.String("run_id", run.ID), zap.Any("panic", r))
			w.fail(ctx, run.ID, job.Attempt, err)
		}
	}()

	result, artifacts, err := w.process(ctx, run, started)
	if err != nil {
		w.fail(ctx, run.ID, job.Attempt, err)
		return err
	}

	finished := models.RunStatusFinished
	summary := result.Summary()
	now := w.now().UTC()
	cleared := ""
	if err := w.repo.Update(ctx, run.ID, repository.UpdateGenerationRunParams{
		Status:       &finished,
		Summary:      &summary,
		Artifacts:    &artifacts,
		ErrorMessage: &cleared,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark run finished", zap.String("run_id", run.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordRunStatus(models.RunStatusFinished)
	w.metrics.ObserveRun(now.Sub(started), len(result.Tickets), len(result.TimeEntries))
	w.refreshCache(ctx, run.ID)
	return nil
}

func (w *RunWorker) process(ctx context.Context, run *models.GenerationRun, started time.Time) (*GenerationResult, models.ArtifactList, error) {
	result, err := w.generator.WithRunLogger(run.ID, run.Seed).GenerateAt(ctx, run.TicketCount, run.Seed, started)
	if err != nil {
		return nil, nil, err
	}
	if w.datasets != nil {
		begin := time.Now()
		err := w.datasets.Save(ctx, run.ID, result.Tickets, result.TimeEntries)
		w.metrics.ObserveDBQuery("dataset_save", time.Since(begin))
		if err != nil {
			return nil, nil, err
		}
	}
	artifacts, err := w.exporter.Export(ctx, run.ID, result, run.IncludePDF)
	if err != nil {
		return nil, nil, err
	}
	return result, artifacts, nil
}

func (w *RunWorker) fail(ctx context.Context, runID string, attempt int, cause error) {
	msg := cause.Error()
	params := repository.UpdateGenerationRunParams{ErrorMessage: &msg}
	if attempt >= w.maxRetries {
		failed := models.RunStatusFailed
		now := w.now().UTC()
		params.Status = &failed
		params.FinishedAt = &now
		w.metrics.RecordRunStatus(models.RunStatusFailed)
	} else {
		queued := models.RunStatusQueued
		params.Status = &queued
	}
	if err := w.repo.Update(ctx, runID, params); err != nil {
		w.logger.Warn("failed to record run failure", zap.String("run_id", runID), zap.Error(err))
	}
	w.refreshCache(ctx, runID)
}

func (w *RunWorker) refreshCache(ctx context.Context, runID string) {
	if !w.cache.Enabled() {
		return
	}
	w.cache.InvalidateRun(ctx, runID)
	if run, err := w.repo.GetByID(ctx, runID); err == nil {
		w.cache.PutRun(ctx, run)
	}
}

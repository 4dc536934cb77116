package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/pkg/cache"
	appErrors "github.com/noah-isme/helpdesk-datagen/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService caches run records and reports hit ratios to metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// GetRun returns a cached run. Cache failures count as misses.
func (s *CacheService) GetRun(ctx context.Context, id string) (*models.GenerationRun, bool) {
	var run models.GenerationRun
	hit, err := s.get(ctx, cache.RunKey(id), &run)
	if err != nil || !hit {
		return nil, false
	}
	return &run, true
}

// PutRun caches a run. Only terminal runs are cached since queued and running runs still change.
func (s *CacheService) PutRun(ctx context.Context, run *models.GenerationRun) {
	if run == nil || (run.Status != models.RunStatusFinished && run.Status != models.RunStatusFailed) {
		return
	}
	_ = s.set(ctx, cache.RunKey(run.ID), run, 0)
}

// InvalidateRun drops every cached key of a run.
func (s *CacheService) InvalidateRun(ctx context.Context, id string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, cache.RunPattern(id)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("run_id", id), zap.Error(err))
	}
}

func (s *CacheService) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

func (s *CacheService) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

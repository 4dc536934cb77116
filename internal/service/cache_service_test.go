package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
	appErrors "github.com/noah-isme/helpdesk-datagen/pkg/errors"
)

type memoryCacheRepo struct {
	items   map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if r.failGet {
		return errors.New("connection reset")
	}
	raw, ok := r.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.items[key] = raw
	r.ttls[key] = ttl
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.items {
		if strings.HasPrefix(key, prefix) {
			delete(r.items, key)
		}
	}
	return nil
}

func TestCacheServiceRunRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	_, hit := svc.GetRun(ctx, "run-1")
	assert.False(t, hit)

	svc.PutRun(ctx, &models.GenerationRun{ID: "run-1", Status: models.RunStatusRunning})
	_, hit = svc.GetRun(ctx, "run-1")
	assert.False(t, hit, "non-terminal runs are not cached")

	svc.PutRun(ctx, &models.GenerationRun{ID: "run-1", Status: models.RunStatusFinished, TicketCount: 3})
	run, hit := svc.GetRun(ctx, "run-1")
	require.True(t, hit)
	assert.Equal(t, 3, run.TicketCount)
	assert.Equal(t, time.Minute, repo.ttls["datagen:run:run-1"])

	svc.InvalidateRun(ctx, "run-1")
	_, hit = svc.GetRun(ctx, "run-1")
	assert.False(t, hit)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(3), snap.CacheMisses)
}

func TestCacheServiceTreatsErrorsAsMiss(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.failGet = true
	svc := NewCacheService(repo, nil, 0, nil, true)

	_, hit := svc.GetRun(context.Background(), "run-1")
	assert.False(t, hit)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)

	svc.PutRun(context.Background(), &models.GenerationRun{ID: "run-1", Status: models.RunStatusFinished})
	assert.Empty(t, repo.items)
	assert.False(t, svc.Enabled())

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

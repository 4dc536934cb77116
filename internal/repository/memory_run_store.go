package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

// MemoryRunStore keeps runs in process when Postgres is disabled. Finished and failed runs expire
// after ttl.
type MemoryRunStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]models.GenerationRun
}

// NewMemoryRunStore constructs the store. A non-positive ttl keeps runs forever.
func NewMemoryRunStore(ttl time.Duration) *MemoryRunStore {
	return &MemoryRunStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]models.GenerationRun),
	}
}

// Create stores a copy of run.
func (s *MemoryRunStore) Create(_ context.Context, run *models.GenerationRun) error {
	prepareRun(run)
	s.mu.Lock()
	s.items[run.ID] = *run
	s.mu.Unlock()
	return nil
}

// GetByID returns a copy of the run, evicting it when expired.
func (s *MemoryRunStore) GetByID(_ context.Context, id string) (*models.GenerationRun, error) {
	s.mu.RLock()
	run, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	if s.expired(run) {
		s.delete(id)
		return nil, ErrRunNotFound
	}
	return &run, nil
}

// Update applies params to a stored run.
func (s *MemoryRunStore) Update(_ context.Context, id string, params UpdateGenerationRunParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.items[id]
	if !ok {
		return ErrRunNotFound
	}
	if params.Status != nil {
		run.Status = *params.Status
	}
	if params.Summary != nil {
		run.Summary = *params.Summary
	}
	if params.Artifacts != nil {
		run.Artifacts = *params.Artifacts
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		run.ErrorMessage = &msg
	}
	if params.StartedAt != nil {
		started := *params.StartedAt
		run.StartedAt = &started
	}
	if params.FinishedAt != nil {
		finished := *params.FinishedAt
		run.FinishedAt = &finished
	}
	s.items[id] = run
	return nil
}

// ListQueued returns queued runs, oldest first.
func (s *MemoryRunStore) ListQueued(_ context.Context, limit int) ([]models.GenerationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	runs := make([]models.GenerationRun, 0)
	for _, run := range s.items {
		if run.Status == models.RunStatusQueued {
			runs = append(runs, run)
		}
	}
	s.mu.RUnlock()
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *MemoryRunStore) expired(run models.GenerationRun) bool {
	if s.ttl <= 0 || run.FinishedAt == nil {
		return false
	}
	return s.now().Sub(*run.FinishedAt) > s.ttl
}

func (s *MemoryRunStore) delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

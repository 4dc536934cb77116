package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/helpdesk-datagen/internal/dto"
	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/pkg/config"
	appErrors "github.com/noah-isme/helpdesk-datagen/pkg/errors"
	"github.com/noah-isme/helpdesk-datagen/pkg/logger"
)

type seedDataLoader interface {
	Load() (*models.SeedData, error)
}

// GenerationResult is the validated dataset of one run.
type GenerationResult struct {
	Seed           int64
	GeneratedAt    time.Time
	Tickets        []models.Ticket
	TimeEntries    []models.TimeEntry
	Diagnostics    []models.ValidationDiagnostic
	Stats          []models.TechStats
	ProfileMapping map[string]string
}

// Summary condenses the result into the persisted run summary.
func (r *GenerationResult) Summary() models.RunSummary {
	counts := make(map[models.DiagnosticKind]int)
	for _, d := range r.Diagnostics {
		counts[d.Kind]++
	}
	return models.RunSummary{
		Tickets:        len(r.Tickets),
		TimeEntries:    len(r.TimeEntries),
		Diagnostics:    counts,
		TechStats:      r.Stats,
		ProfileMapping: r.ProfileMapping,
	}
}

// GenerationService samples tickets and time entries and reconciles them through the validator pipeline.
type GenerationService struct {
	cfg          config.GenerationConfig
	seeds        seedDataLoader
	profilesPath string
	stats        *TicketStatsService
	observer     DiagnosticObserver
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewGenerationService wires generation dependencies. observer may be nil.
func NewGenerationService(cfg config.GenerationConfig, seeds seedDataLoader, profilesPath string, observer DiagnosticObserver, validate *validator.Validate, log *zap.Logger) *GenerationService {
	if validate == nil {
		validate = validator.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GenerationService{
		cfg:          cfg,
		seeds:        seeds,
		profilesPath: profilesPath,
		stats:        NewTicketStatsService(),
		observer:     observer,
		validator:    validate,
		logger:       log,
		now:          time.Now,
	}
}

// Generate produces a validated dataset. A nil seed draws one from the clock. The same seed, seed lists
// and profile document always yield the same dataset relative to the run's reference time.
func (s *GenerationService) Generate(ctx context.Context, req dto.GenerateRequest) (*GenerationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation request")
	}
	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	return s.GenerateAt(ctx, req.Tickets, seed, s.now().UTC())
}

// GenerateAt runs generation with an explicit seed and reference time.
func (s *GenerationService) GenerateAt(ctx context.Context, tickets int, seed int64, now time.Time) (*GenerationResult, error) {
	log := s.logger
	seeds := &models.SeedData{}
	if s.seeds != nil {
		loaded, err := s.seeds.Load()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seed data")
		}
		seeds = loaded
	}

	rng := rand.New(rand.NewSource(seed))
	clock := func() time.Time { return now }
	registry := LoadProfileRegistry(s.profilesPath, seeds.Techs, rng, log)
	opts := []PipelineOption{WithClock(clock), WithPipelineLogger(log)}
	if s.observer != nil {
		opts = append(opts, WithObserver(s.observer))
	}
	pipeline := NewValidatorPipeline(s.cfg, seeds.Techs, opts...)
	sampler := NewTicketSampler(s.cfg, seeds, registry, rng, now)

	result := &GenerationResult{
		Seed:        seed,
		GeneratedAt: now,
		Tickets:     make([]models.Ticket, 0, tickets),
		TimeEntries: make([]models.TimeEntry, 0, tickets*maxInt(1, s.cfg.TimeEntryMaxCount)),
	}
	for i := 0; i < tickets; i++ {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generation cancelled")
		}
		ticket := pipeline.ValidateTicket(sampler.SampleTicket())
		entries := pipeline.ValidateTimeEntries(ticket, sampler.SampleTimeEntries(ticket))
		result.Tickets = append(result.Tickets, ticket.Clone())
		result.TimeEntries = append(result.TimeEntries, entries...)
	}

	result.Diagnostics = pipeline.Diagnostics()
	result.ProfileMapping = registry.TechProfileMapping()
	result.Stats = s.stats.Summarize(result.Tickets, registry)

	log.Info("generated dataset",
		zap.Int("tickets", len(result.Tickets)),
		zap.Int("time_entries", len(result.TimeEntries)),
		zap.Int("diagnostics", len(result.Diagnostics)),
	)
	return result, nil
}

// WithRunLogger returns a copy of the service that logs under a run's fields.
func (s *GenerationService) WithRunLogger(runID string, seed int64) *GenerationService {
	clone := *s
	clone.logger = logger.ForRun(s.logger, runID, seed)
	return &clone
}

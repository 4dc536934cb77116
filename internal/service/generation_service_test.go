package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/helpdesk-datagen/internal/dto"
	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/pkg/config"
	appErrors "github.com/noah-isme/helpdesk-datagen/pkg/errors"
)

type staticSeedLoader struct {
	data *models.SeedData
	err  error
}

func (l staticSeedLoader) Load() (*models.SeedData, error) {
	return l.data, l.err
}

func newGenerationFixture(cfg config.GenerationConfig) *GenerationService {
	svc := NewGenerationService(cfg, staticSeedLoader{data: sampleSeeds()}, "", nil, nil, zap.NewNop())
	svc.now = fixedNow
	return svc
}

func TestGenerationServiceProducesConsistentDataset(t *testing.T) {
	cfg := config.DefaultGeneration()
	cfg.DailyTicketCap = 3
	cfg.MaxOpenTicketsPerTech = 4
	svc := newGenerationFixture(cfg)

	seed := int64(2024)
	result, err := svc.Generate(context.Background(), dto.GenerateRequest{Tickets: 150, Seed: &seed})
	require.NoError(t, err)
	require.Len(t, result.Tickets, 150)
	assert.Equal(t, seed, result.Seed)
	assert.Equal(t, validatorNow, result.GeneratedAt)

	numbers := map[int]bool{}
	daily := map[string]int{}
	for _, ticket := range result.Tickets {
		assert.False(t, numbers[ticket.Number])
		numbers[ticket.Number] = true
		assert.False(t, ticket.StartTime.After(validatorNow))
		assert.False(t, ticket.EndTime.After(validatorNow))
		assert.False(t, ticket.EndTime.Before(ticket.StartTime))
		if ticket.AssignedTech != models.UnassignedTech {
			daily[ticket.AssignedTech+"|"+DayKey(ticket.StartTime)]++
		}
	}
	for key, count := range daily {
		assert.LessOrEqual(t, count, cfg.DailyTicketCap, key)
	}

	pad := time.Duration(cfg.TimeEntryBufferMinutes) * time.Minute
	for i, a := range result.TimeEntries {
		assert.False(t, a.CreatedAt.Add(a.Duration()).After(validatorNow))
		for _, b := range result.TimeEntries[i+1:] {
			if a.Tech != b.Tech {
				continue
			}
			disjoint := !a.CreatedAt.Before(b.CreatedAt.Add(b.Duration()+pad)) || !b.CreatedAt.Before(a.CreatedAt.Add(a.Duration()+pad))
			assert.True(t, disjoint)
		}
	}

	summary := result.Summary()
	assert.Equal(t, 150, summary.Tickets)
	assert.Equal(t, len(result.TimeEntries), summary.TimeEntries)
	total := 0
	for _, stat := range summary.TechStats {
		total += stat.Total
	}
	assert.Equal(t, 150, total)
	assert.Len(t, result.ProfileMapping, 2)
}

func TestGenerationServiceIsDeterministicPerSeed(t *testing.T) {
	svc := newGenerationFixture(config.DefaultGeneration())

	first, err := svc.GenerateAt(context.Background(), 40, 77, validatorNow)
	require.NoError(t, err)
	second, err := svc.GenerateAt(context.Background(), 40, 77, validatorNow)
	require.NoError(t, err)

	assert.Equal(t, first.Tickets, second.Tickets)
	assert.Equal(t, first.TimeEntries, second.TimeEntries)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
}

func TestGenerationServiceRejectsInvalidRequest(t *testing.T) {
	svc := newGenerationFixture(config.DefaultGeneration())

	_, err := svc.Generate(context.Background(), dto.GenerateRequest{Tickets: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestGenerationServiceStopsOnCancelledContext(t *testing.T) {
	svc := newGenerationFixture(config.DefaultGeneration())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GenerateAt(ctx, 10, 1, validatorNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerationServiceSeedLoadFailure(t *testing.T) {
	svc := NewGenerationService(config.DefaultGeneration(), staticSeedLoader{err: errors.New("disk gone")}, "", nil, nil, nil)

	_, err := svc.GenerateAt(context.Background(), 1, 1, validatorNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestGenerationServiceForwardsDiagnosticsToObserver(t *testing.T) {
	cfg := config.DefaultGeneration()
	cfg.DailyTicketCap = 1
	observer := &recordingObserver{}
	svc := NewGenerationService(cfg, staticSeedLoader{data: sampleSeeds()}, "", observer, nil, nil)

	result, err := svc.GenerateAt(context.Background(), 60, 5, validatorNow)
	require.NoError(t, err)
	assert.Len(t, observer.kinds, len(result.Diagnostics))
	assert.NotEmpty(t, observer.kinds)
}

package service

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/pkg/config"
)

func sampleSeeds() *models.SeedData {
	return &models.SeedData{
		Customers:     []string{"Acme", "Globex"},
		Contacts:      []string{"Jordan"},
		Descriptions:  []string{"Printer offline"},
		IssueTypes:    []string{"Hardware"},
		Priorities:    []string{"Low", "High"},
		Statuses:      []string{"Open", "Resolved", "Waiting"},
		Subjects:      []string{"Printer"},
		Techs:         []string{"Alice", "Bob"},
		LaborTypes:    []string{"Remote Support"},
		NoteTemplates: []string{"{tech} spent {duration} minutes on {subject}."},
	}
}

func TestTicketSamplerSampleTicket(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	sampler := NewTicketSampler(config.DefaultGeneration(), sampleSeeds(), nil, rng, validatorNow)

	windowStart := validatorNow.AddDate(0, 0, -21)
	numbers := map[int]bool{}
	for i := 0; i < 200; i++ {
		ticket := sampler.SampleTicket()
		require.NotNil(t, ticket)

		assert.False(t, numbers[ticket.Number], "ticket number %d repeated", ticket.Number)
		numbers[ticket.Number] = true
		assert.GreaterOrEqual(t, ticket.Number, 1000)

		assert.Contains(t, []string{"Alice", "Bob"}, ticket.AssignedTech)
		assert.Contains(t, []string{"Acme", "Globex"}, ticket.Customer)
		assert.Equal(t, "Jordan", ticket.Contact)
		assert.False(t, ticket.StartTime.Before(windowStart))
		assert.False(t, ticket.StartTime.After(validatorNow))
		assert.False(t, ticket.EndTime.Before(ticket.StartTime))

		if ticket.ClosedAt != nil {
			assert.Equal(t, ResolvedStatus, ticket.Status)
			assert.Equal(t, *ticket.ClosedAt, ticket.EndTime)
			assert.False(t, ticket.ClosedAt.Before(ticket.StartTime))
		} else {
			assert.Contains(t, []string{"Open", "Waiting"}, ticket.Status)
		}
	}
}

func TestTicketSamplerFallsBackOnEmptySeeds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sampler := NewTicketSampler(config.DefaultGeneration(), nil, nil, rng, validatorNow)

	ticket := sampler.SampleTicket()
	assert.Equal(t, models.UnassignedTech, ticket.AssignedTech)
	assert.Equal(t, "Unknown Customer", ticket.Customer)
	assert.Equal(t, "Unknown Contact", ticket.Contact)
	assert.Equal(t, "General Issue", ticket.Subject)
	assert.Equal(t, "No description provided.", ticket.Description)
	assert.Equal(t, "General Inquiry", ticket.IssueType)
	assert.Equal(t, "Low", ticket.Priority)
	if ticket.ClosedAt == nil {
		assert.Equal(t, "Open", ticket.Status)
	}
}

func TestTicketSamplerClosureRates(t *testing.T) {
	always := NewWeightedProfile("always")
	always.SameDayCloseRate = 1
	never := NewWeightedProfile("never")
	never.SameDayCloseRate = 0
	never.DailyCloseRate = 0

	sampler := NewTicketSampler(config.DefaultGeneration(), sampleSeeds(), nil, rand.New(rand.NewSource(3)), validatorNow)
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	closed := sampler.closure(always, start)
	require.NotNil(t, closed)
	assert.Equal(t, DayKey(start), DayKey(*closed))
	assert.True(t, closed.After(start))

	assert.Nil(t, sampler.closure(never, start))

	late := time.Date(2024, 5, 6, 23, 30, 0, 0, time.UTC)
	closed = sampler.closure(always, late)
	require.NotNil(t, closed)
	assert.Equal(t, time.Date(2024, 5, 6, 23, 59, 0, 0, time.UTC), *closed)
}

func TestTicketSamplerTimeEntries(t *testing.T) {
	cfg := config.DefaultGeneration()
	rng := rand.New(rand.NewSource(17))
	sampler := NewTicketSampler(cfg, sampleSeeds(), nil, rng, validatorNow)
	ticket := ticketAt(4242, "Carol", time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC))
	ticket.Subject = "Printer"
	ticket.EndTime = ticket.StartTime.Add(6 * time.Hour)

	for round := 0; round < 50; round++ {
		entries := sampler.SampleTimeEntries(ticket)
		require.GreaterOrEqual(t, len(entries), cfg.TimeEntryMinCount)
		require.LessOrEqual(t, len(entries), cfg.TimeEntryMaxCount)

		for i, entry := range entries {
			assert.Equal(t, i+1, entry.Sequence)
			assert.Equal(t, ticket.Number, entry.TicketNumber)
			assert.Equal(t, 0, entry.DurationMinutes%cfg.TimeEntryDurationIntervalMinutes)
			assert.GreaterOrEqual(t, entry.DurationMinutes, cfg.TimeEntryMinDurationMinutes)
			assert.LessOrEqual(t, entry.DurationMinutes, cfg.TimeEntryMaxDurationMinutes)
			assert.Contains(t, []string{"Alice", "Bob", "Carol"}, entry.Tech)
			assert.Contains(t, []string{"Public", "Private"}, entry.Visibility)
			assert.Contains(t, []string{"Billable", "Non-Billable"}, entry.BillableStatus)
			assert.Equal(t, "Remote Support", entry.LaborType)
			assert.Equal(t, entry.Tech+" spent "+strconv.Itoa(entry.DurationMinutes)+" minutes on Printer.", entry.Notes)
			assert.False(t, entry.CreatedAt.Before(ticket.StartTime))
			assert.False(t, entry.CreatedAt.After(ticket.EndTime))
			if i > 0 {
				assert.False(t, entry.CreatedAt.Before(entries[i-1].CreatedAt))
			}
			assert.LessOrEqual(t, len(entry.Dependencies), 2)
			for _, dep := range entry.Dependencies {
				assert.Less(t, dep, entry.Sequence)
			}
		}
	}
}

func TestTicketSamplerZeroEntryCount(t *testing.T) {
	cfg := config.DefaultGeneration()
	cfg.TimeEntryMinCount = 0
	cfg.TimeEntryMaxCount = 0
	sampler := NewTicketSampler(cfg, sampleSeeds(), nil, rand.New(rand.NewSource(2)), validatorNow)

	entries := sampler.SampleTimeEntries(ticketAt(1, "Alice", validatorNow.Add(-time.Hour)))
	require.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestSamplerOffsetsCollapseShortWindows(t *testing.T) {
	sampler := NewTicketSampler(config.DefaultGeneration(), sampleSeeds(), nil, rand.New(rand.NewSource(2)), validatorNow)
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, []int{0, 5, 10}, sampler.offsets(3, start, start.Add(10*time.Minute), 5))

	offsets := sampler.offsets(4, start, start, 5)
	require.Len(t, offsets, 4)
	for i, offset := range offsets {
		assert.Equal(t, 0, offset%5)
		assert.LessOrEqual(t, offset, 20)
		if i > 0 {
			assert.Greater(t, offset, offsets[i-1])
		}
	}
}

func TestDurationChoices(t *testing.T) {
	cfg := config.DefaultGeneration()
	cfg.TimeEntryMinDurationMinutes = 2
	cfg.TimeEntryMaxDurationMinutes = 20
	assert.Equal(t, []string{"5", "10", "15", "20"}, DurationChoices(cfg))

	cfg.TimeEntryMaxDurationMinutes = 1
	assert.Equal(t, []string{"5"}, DurationChoices(cfg))
}

func TestIsResolvedStatus(t *testing.T) {
	assert.True(t, IsResolvedStatus("Resolved"))
	assert.True(t, IsResolvedStatus(" resolved - remote"))
	assert.False(t, IsResolvedStatus("Open"))
	assert.False(t, IsResolvedStatus(""))
}

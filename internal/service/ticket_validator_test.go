package service

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/pkg/config"
)

var validatorNow = time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return validatorNow }

func capConfig(openCap, dailyCap int) config.GenerationConfig {
	cfg := config.DefaultGeneration()
	cfg.MaxOpenTicketsPerTech = openCap
	cfg.DailyTicketCap = dailyCap
	return cfg
}

func ticketAt(number int, tech string, start time.Time) *models.Ticket {
	return &models.Ticket{
		Customer:     "Acme",
		Number:       number,
		AssignedTech: tech,
		Status:       "Open",
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
	}
}

func TestOpenTicketCapReassignsToNextRosterTech(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(1, 10), []string{"Alice", "Bob"}, WithClock(fixedNow))
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	first := pipeline.ValidateTicket(ticketAt(1, "Alice", start))
	second := pipeline.ValidateTicket(ticketAt(2, "Alice", start.Add(2*time.Hour)))

	assert.Equal(t, "Alice", first.AssignedTech)
	assert.Equal(t, "Bob", second.AssignedTech)

	diags := pipeline.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, models.DiagnosticTicketReassigned, diags[0].Kind)
	assert.Equal(t, "Alice", diags[0].Meta["from"])
	assert.Equal(t, "Bob", diags[0].Meta["to"])
}

func TestRosterScanSkipsLeadingUnassigned(t *testing.T) {
	roster := []string{models.UnassignedTech, "Alice", "Bob"}
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	open := NewValidatorPipeline(capConfig(1, 10), roster, WithClock(fixedNow))
	require.Equal(t, roster, open.State().Roster())
	open.ValidateTicket(ticketAt(1, "Alice", start))
	assert.Equal(t, "Bob", open.ValidateTicket(ticketAt(2, "Alice", start)).AssignedTech)

	daily := NewValidatorPipeline(capConfig(10, 1), roster, WithClock(fixedNow))
	daily.ValidateTicket(ticketAt(1, "Alice", start))
	assert.Equal(t, "Bob", daily.ValidateTicket(ticketAt(2, "Alice", start.Add(time.Hour))).AssignedTech)
	assert.Equal(t, 0, daily.State().DailyCount(models.UnassignedTech, "2024-05-06"))
}

func TestOpenTicketCapFallsBackToUnassigned(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(1, 10), []string{"Alice"}, WithClock(fixedNow))
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	pipeline.ValidateTicket(ticketAt(1, "Alice", start))
	second := pipeline.ValidateTicket(ticketAt(2, "Alice", start))

	assert.Equal(t, models.UnassignedTech, second.AssignedTech)
	assert.Equal(t, 1, pipeline.State().OpenCount(models.UnassignedTech, "2024-05-06"))
}

func TestOpenTicketCapUnassignedOverflowIsSoft(t *testing.T) {
	cfg := capConfig(1, 10)
	cfg.MaxOpenTicketsUnassigned = 1
	pipeline := NewValidatorPipeline(cfg, []string{"Alice"}, WithClock(fixedNow))
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		pipeline.ValidateTicket(ticketAt(i, "Alice", start))
	}

	assert.Equal(t, 2, pipeline.State().OpenCount(models.UnassignedTech, "2024-05-06"))
	last := pipeline.Diagnostics()[len(pipeline.Diagnostics())-1]
	assert.Equal(t, models.DiagnosticCapacityUnresolved, last.Kind)
}

func TestOpenTicketCapCountsEverySpanDay(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(1, 10), []string{"Alice", "Bob"}, WithClock(fixedNow))
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	closed := start.AddDate(0, 0, 2)

	long := ticketAt(1, "Alice", start)
	long.ClosedAt = &closed
	pipeline.ValidateTicket(long)

	state := pipeline.State()
	for _, day := range []string{"2024-05-06", "2024-05-07", "2024-05-08"} {
		assert.Equal(t, 1, state.OpenCount("Alice", day), day)
	}
	assert.Equal(t, 0, state.OpenCount("Alice", "2024-05-09"))

	midSpan := pipeline.ValidateTicket(ticketAt(2, "Alice", start.AddDate(0, 0, 1)))
	assert.Equal(t, "Bob", midSpan.AssignedTech)
}

func TestOpenSpanDaysCollapsesWhenClosedBeforeStart(t *testing.T) {
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	closed := start.AddDate(0, 0, -3)
	ticket := ticketAt(1, "Alice", start)
	ticket.ClosedAt = &closed

	assert.Equal(t, []string{"2024-05-06"}, OpenSpanDays(ticket))
}

func TestOpenTicketCapClampsFutureTimestamps(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(5, 10), []string{"Alice"}, WithClock(fixedNow))
	future := validatorNow.Add(3 * time.Hour)
	ticket := ticketAt(1, "Alice", future)
	closed := future.Add(time.Hour)
	ticket.ClosedAt = &closed

	pipeline.ValidateTicket(ticket)

	assert.Equal(t, validatorNow, ticket.StartTime)
	assert.Equal(t, validatorNow, ticket.EndTime)
	assert.Equal(t, validatorNow, *ticket.ClosedAt)
	assert.Equal(t, models.DiagnosticTimestampClamped, pipeline.Diagnostics()[0].Kind)
}

func TestOpenTicketCapWithoutClampKeepsFuture(t *testing.T) {
	cfg := capConfig(5, 10)
	cfg.ClampToNow = false
	pipeline := NewValidatorPipeline(cfg, []string{"Alice"}, WithClock(fixedNow))
	future := validatorNow.Add(3 * time.Hour)
	ticket := ticketAt(1, "Alice", future)
	ticket.EndTime = future.Add(-time.Hour)

	pipeline.ValidateTicket(ticket)

	assert.Equal(t, future, ticket.StartTime)
	assert.Equal(t, future, ticket.EndTime)
	assert.Empty(t, pipeline.Diagnostics())
}

func TestTicketValidatorsSkipMalformedTickets(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(1, 1), []string{"Alice"}, WithClock(fixedNow))

	noTech := ticketAt(1, "", time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC))
	noStart := ticketAt(2, "Alice", time.Time{})
	noStart.EndTime = time.Time{}

	assert.Equal(t, "", pipeline.ValidateTicket(noTech).AssignedTech)
	assert.True(t, pipeline.ValidateTicket(noStart).StartTime.IsZero())
	assert.Nil(t, pipeline.ValidateTicket(nil))

	diags := pipeline.Diagnostics()
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, models.DiagnosticTicketSkipped, d.Kind)
	}
	assert.Equal(t, 0, pipeline.State().DailyCount("Alice", "0001-01-01"))
}

func TestDailyCapReassignsWithoutTouchingTimestamps(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(10, 1), []string{"Alice", "Bob"}, WithClock(fixedNow))
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	pipeline.ValidateTicket(ticketAt(1, "Alice", start))
	second := ticketAt(2, "Alice", start.Add(time.Hour))
	wantStart, wantEnd := second.StartTime, second.EndTime
	pipeline.ValidateTicket(second)

	assert.Equal(t, "Bob", second.AssignedTech)
	assert.Equal(t, wantStart, second.StartTime)
	assert.Equal(t, wantEnd, second.EndTime)

	state := pipeline.State()
	assert.Equal(t, 1, state.DailyCount("Alice", "2024-05-06"))
	assert.Equal(t, 1, state.DailyCount("Bob", "2024-05-06"))
	assert.Equal(t, 1, state.OpenCount("Alice", "2024-05-06"))
	assert.Equal(t, 1, state.OpenCount("Bob", "2024-05-06"))
}

func TestDailyCapSkipsCandidatesOverOpenCap(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(2, 1), []string{"Alice", "Bob", "Carol"}, WithClock(fixedNow))
	day := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	closed := day.Add(4 * time.Hour)

	// Bob still holds two tickets opened on earlier days.
	for i, offset := range []int{-1, -2} {
		ticket := ticketAt(i+1, "Bob", day.AddDate(0, 0, offset))
		ticket.ClosedAt = &closed
		require.Equal(t, "Bob", pipeline.ValidateTicket(ticket).AssignedTech)
	}
	require.Equal(t, 2, pipeline.State().OpenCount("Bob", "2024-05-06"))

	pipeline.ValidateTicket(ticketAt(3, "Alice", day))
	second := pipeline.ValidateTicket(ticketAt(4, "Alice", day.Add(time.Hour)))

	assert.Equal(t, "Carol", second.AssignedTech)
	state := pipeline.State()
	assert.Equal(t, 1, state.OpenCount("Alice", "2024-05-06"))
	assert.Equal(t, 1, state.OpenCount("Carol", "2024-05-06"))
	assert.Equal(t, 1, state.DailyCount("Carol", "2024-05-06"))
}

func TestDailyCapExemptsUnassigned(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(10, 1), []string{"Alice"}, WithClock(fixedNow))
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 4; i++ {
		ticket := pipeline.ValidateTicket(ticketAt(i, models.UnassignedTech, start))
		assert.Equal(t, models.UnassignedTech, ticket.AssignedTech)
	}
	assert.Equal(t, 4, pipeline.State().DailyCount(models.UnassignedTech, "2024-05-06"))
}

func TestTicketValidationIsIdempotent(t *testing.T) {
	pipeline := NewValidatorPipeline(capConfig(1, 1), []string{"Alice", "Bob"}, WithClock(fixedNow))
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

	tickets := []*models.Ticket{
		ticketAt(1, "Alice", start),
		ticketAt(2, "Alice", start),
		ticketAt(3, "Alice", start),
	}
	for _, ticket := range tickets {
		pipeline.ValidateTicket(ticket)
	}

	state := pipeline.State()
	before := map[string][2]int{}
	for _, tech := range state.Roster() {
		before[tech] = [2]int{state.OpenCount(tech, "2024-05-06"), state.DailyCount(tech, "2024-05-06")}
	}

	for _, ticket := range tickets {
		snapshot := ticket.Clone()
		pipeline.ValidateTicket(ticket)
		assert.Equal(t, snapshot, *ticket)
	}

	for _, tech := range state.Roster() {
		assert.Equal(t, before[tech], [2]int{state.OpenCount(tech, "2024-05-06"), state.DailyCount(tech, "2024-05-06")}, tech)
	}
}

func TestOpenTicketCapNeverExceededForNamedTechs(t *testing.T) {
	const openCap = 3
	roster := []string{"Alice", "Bob", "Carol", "Dave"}
	pipeline := NewValidatorPipeline(capConfig(openCap, 4), roster, WithClock(fixedNow))
	rng := rand.New(rand.NewSource(99))
	base := time.Date(2024, 4, 20, 8, 0, 0, 0, time.UTC)

	var tickets []*models.Ticket
	for i := 1; i <= 120; i++ {
		start := base.Add(time.Duration(rng.Intn(20*24)) * time.Hour)
		ticket := ticketAt(i, roster[rng.Intn(len(roster))], start)
		if rng.Intn(2) == 0 {
			closed := start.Add(time.Duration(rng.Intn(72)) * time.Hour)
			ticket.ClosedAt = &closed
		}
		tickets = append(tickets, pipeline.ValidateTicket(ticket))
	}

	openCounts := map[string]int{}
	dailyCounts := map[string]int{}
	for _, ticket := range tickets {
		for _, day := range OpenSpanDays(ticket) {
			openCounts[ticket.AssignedTech+"|"+day]++
		}
		dailyCounts[ticket.AssignedTech+"|"+DayKey(ticket.StartTime)]++
	}
	for _, tech := range roster {
		for key, count := range openCounts {
			if len(key) > len(tech) && key[:len(tech)+1] == tech+"|" {
				assert.LessOrEqual(t, count, openCap, fmt.Sprintf("open %s", key))
			}
		}
		for key, count := range dailyCounts {
			if len(key) > len(tech) && key[:len(tech)+1] == tech+"|" {
				assert.LessOrEqual(t, count, 4, fmt.Sprintf("daily %s", key))
			}
		}
	}
}

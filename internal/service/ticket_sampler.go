package service

import (
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
	"github.com/noah-isme/helpdesk-datagen/internal/repository"
	"github.com/noah-isme/helpdesk-datagen/pkg/config"
)

// Fallback values for seed lists that are empty.
const (
	fallbackContact     = "Unknown Contact"
	fallbackCustomer    = "Unknown Customer"
	fallbackDescription = "No description provided."
	fallbackIssueType   = "General Inquiry"
	fallbackPriority    = "Low"
	fallbackStatus      = "Open"
	fallbackSubject     = "General Issue"

	// ResolvedStatus marks tickets the sampler closed.
	ResolvedStatus = "Resolved"

	assignedTechWeight = 3
	ticketNumberFloor  = 1000
	ticketNumberSpread = 9000
)

var (
	visibilityOptions = []string{"Public", "Private"}
	visibilityWeights = []float64{1, 3}
	billableOptions   = []string{"Billable", "Non-Billable"}
	billableWeights   = []float64{3, 1}
)

// TicketSampler draws raw ticket and time-entry candidates from seed lists and profiles.
// The candidates are not validated; the ValidatorPipeline reconciles them.
type TicketSampler struct {
	cfg           config.GenerationConfig
	seeds         *models.SeedData
	profiles      *ProfileRegistry
	rng           *rand.Rand
	now           time.Time
	durations     []string
	laborTypes    []string
	noteTemplates []string
	openStatuses  []string
	nextNumber    int
}

// NewTicketSampler builds a sampler. Ticket numbers run sequentially from a random base.
func NewTicketSampler(cfg config.GenerationConfig, seeds *models.SeedData, profiles *ProfileRegistry, rng *rand.Rand, now time.Time) *TicketSampler {
	if seeds == nil {
		seeds = &models.SeedData{}
	}
	if profiles == nil {
		profiles = NewProfileRegistry(nil, nil, nil, nil)
	}
	s := &TicketSampler{
		cfg:           cfg,
		seeds:         seeds,
		profiles:      profiles,
		rng:           rng,
		now:           now,
		durations:     DurationChoices(cfg),
		laborTypes:    nonEmpty(seeds.LaborTypes, repository.DefaultLaborTypes),
		noteTemplates: nonEmpty(seeds.NoteTemplates, repository.DefaultNoteTemplates),
	}
	for _, status := range seeds.Statuses {
		if !IsResolvedStatus(status) {
			s.openStatuses = append(s.openStatuses, status)
		}
	}
	s.nextNumber = ticketNumberFloor + rng.Intn(ticketNumberSpread)
	return s
}

// SampleTicket draws one ticket. The technician is chosen first so its profile can weight the customer.
func (s *TicketSampler) SampleTicket() *models.Ticket {
	tech := models.UnassignedTech
	if len(s.seeds.Techs) > 0 {
		tech = s.seeds.Techs[s.rng.Intn(len(s.seeds.Techs))]
	}
	customer := s.pick(s.profiles.ResolveTechProfile(tech), CategoryCustomer, s.seeds.Customers, fallbackCustomer)
	profile := s.profiles.Resolve(tech, customer)

	t := &models.Ticket{
		Customer:     customer,
		Number:       s.nextNumber,
		Contact:      s.pick(profile, CategoryContact, s.seeds.Contacts, fallbackContact),
		Subject:      s.pick(profile, CategorySubject, s.seeds.Subjects, fallbackSubject),
		Description:  s.pick(profile, CategoryDescription, s.seeds.Descriptions, fallbackDescription),
		IssueType:    s.pick(profile, CategoryIssueType, s.seeds.IssueTypes, fallbackIssueType),
		Priority:     s.pick(profile, CategoryPriority, s.seeds.Priorities, fallbackPriority),
		AssignedTech: tech,
	}
	s.nextNumber++

	t.StartTime = s.randomTime()
	t.EndTime = s.randomTime()
	if t.EndTime.Before(t.StartTime) {
		t.EndTime = t.StartTime.Add(time.Hour)
	}

	if closed := s.closure(profile, t.StartTime); closed != nil {
		t.Status = ResolvedStatus
		t.ClosedAt = closed
		t.EndTime = *closed
	} else {
		t.Status = s.pick(profile, CategoryStatus, s.openStatuses, fallbackStatus)
	}
	return t
}

// SampleTimeEntries draws the raw time entries for ticket on the configured duration grid.
func (s *TicketSampler) SampleTimeEntries(ticket *models.Ticket) []models.TimeEntry {
	if ticket == nil || len(s.durations) == 0 {
		return []models.TimeEntry{}
	}
	minCount := maxInt(0, s.cfg.TimeEntryMinCount)
	maxCount := maxInt(minCount, s.cfg.TimeEntryMaxCount)
	if maxCount == 0 {
		return []models.TimeEntry{}
	}
	count := minCount + s.rng.Intn(maxCount-minCount+1)
	if count == 0 {
		return []models.TimeEntry{}
	}

	profile := s.profiles.Resolve(ticket.AssignedTech, ticket.Customer)
	techs := append([]string(nil), s.seeds.Techs...)
	if ticket.AssignedTech != "" && !containsString(techs, ticket.AssignedTech) {
		techs = append(techs, ticket.AssignedTech)
	}

	step := s.step()
	offsets := s.offsets(count, ticket.StartTime, ticket.EndTime, step)
	entries := make([]models.TimeEntry, 0, count)
	for i := 0; i < count; i++ {
		choice, _ := profile.Pick(s.rng, CategoryDurationMins, s.durations)
		duration, _ := strconv.Atoi(choice)
		tech := s.selectTech(ticket.AssignedTech, techs)
		laborType, _ := profile.Pick(s.rng, CategoryLaborType, s.laborTypes)
		template := s.noteTemplates[s.rng.Intn(len(s.noteTemplates))]
		notes := strings.NewReplacer(
			"{subject}", ticket.Subject,
			"{duration}", strconv.Itoa(duration),
			"{tech}", tech,
		).Replace(template)

		entries = append(entries, models.TimeEntry{
			Customer:        ticket.Customer,
			TicketNumber:    ticket.Number,
			Sequence:        i + 1,
			Tech:            tech,
			DurationMinutes: duration,
			Visibility:      weightedChoice(s.rng, visibilityOptions, visibilityWeights),
			BillableStatus:  weightedChoice(s.rng, billableOptions, billableWeights),
			LaborType:       laborType,
			CreatedAt:       ticket.StartTime.Add(time.Duration(offsets[i]) * time.Minute),
			Notes:           notes,
			Dependencies:    s.dependencies(i),
		})
	}
	return entries
}

// DurationChoices lists the allowed entry durations, in minutes, honouring the configured step.
func DurationChoices(cfg config.GenerationConfig) []string {
	step := maxInt(1, cfg.TimeEntryDurationIntervalMinutes)
	minimum := maxInt(step, cfg.TimeEntryMinDurationMinutes)
	maximum := maxInt(minimum, cfg.TimeEntryMaxDurationMinutes)
	out := make([]string, 0, (maximum-minimum)/step+1)
	for d := minimum; d <= maximum; d += step {
		out = append(out, strconv.Itoa(d))
	}
	return out
}

// IsResolvedStatus reports whether status counts as resolved.
func IsResolvedStatus(status string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(status)), "resolved")
}

func (s *TicketSampler) pick(profile *WeightedProfile, category string, options []string, fallback string) string {
	if value, ok := profile.Pick(s.rng, category, options); ok && value != "" {
		return value
	}
	return fallback
}

func (s *TicketSampler) step() int {
	return maxInt(1, s.cfg.TimeEntryDurationIntervalMinutes)
}

func (s *TicketSampler) randomTime() time.Time {
	days := maxInt(1, s.cfg.DaysAgo)
	window := time.Duration(days) * 24 * time.Hour
	return s.now.Add(-window).Add(time.Duration(s.rng.Int63n(int64(window) + 1)))
}

// closure decides whether and when a ticket started at start gets closed.
func (s *TicketSampler) closure(profile *WeightedProfile, start time.Time) *time.Time {
	if s.rng.Float64() < profile.SameDayCloseRate {
		closed := start.Add(time.Duration(1+s.rng.Intn(6))*time.Hour + time.Duration(s.rng.Intn(60))*time.Minute)
		dayEnd := time.Date(start.Year(), start.Month(), start.Day(), 23, 59, 0, 0, start.Location())
		if closed.After(dayEnd) {
			closed = dayEnd
		}
		if closed.Before(start) {
			closed = start
		}
		return &closed
	}
	for day := 1; day <= profile.MaxCloseDays; day++ {
		if s.rng.Float64() < profile.DailyCloseRate {
			closed := start.AddDate(0, 0, day).Add(time.Duration(s.rng.Intn(8*60)) * time.Minute)
			return &closed
		}
	}
	return nil
}

// offsets returns sorted minute offsets on the step grid inside the ticket window.
func (s *TicketSampler) offsets(count int, start, end time.Time, step int) []int {
	if !end.After(start) {
		end = start.Add(time.Duration(step*count) * time.Minute)
	}
	total := maxInt(step, int(end.Sub(start)/time.Minute))
	slots := total/step + 1
	if slots <= count {
		out := make([]int, count)
		last := (slots - 1) * step
		for i := range out {
			out[i] = minInt(i*step, last)
		}
		return out
	}
	picked := s.rng.Perm(slots)[:count]
	sort.Ints(picked)
	out := make([]int, count)
	for i, slot := range picked {
		out[i] = slot * step
	}
	return out
}

func (s *TicketSampler) selectTech(assigned string, techs []string) string {
	if len(techs) == 0 {
		if assigned != "" {
			return assigned
		}
		return models.UnassignedTech
	}
	weights := make([]float64, len(techs))
	for i, tech := range techs {
		weights[i] = 1
		if assigned != "" && tech == assigned {
			weights[i] = assignedTechWeight
		}
	}
	return weightedChoice(s.rng, techs, weights)
}

// dependencies draws up to two earlier sequence numbers for the entry at index.
func (s *TicketSampler) dependencies(index int) models.IntList {
	limit := minInt(2, index)
	if limit == 0 {
		return models.IntList{}
	}
	k := s.rng.Intn(limit + 1)
	deps := make(models.IntList, 0, k)
	for _, i := range s.rng.Perm(index)[:k] {
		deps = append(deps, i+1)
	}
	sort.Ints(deps)
	return deps
}

func weightedChoice(rng *rand.Rand, options []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := rng.Float64() * total
	for i, w := range weights {
		if target < w {
			return options[i]
		}
		target -= w
	}
	return options[len(options)-1]
}

func nonEmpty(values, fallback []string) []string {
	if len(values) > 0 {
		return values
	}
	return append([]string(nil), fallback...)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

// NonOverlapTimeEntryScheduler shifts time entries so no technician logs overlapping work,
// keeping bufferMinutes between consecutive blocks and never scheduling into the future.
type NonOverlapTimeEntryScheduler struct {
	state  *ValidationState
	buffer time.Duration
	now    func() time.Time
	report diagnosticSink
}

// NewNonOverlapTimeEntryScheduler constructs a scheduler over a shared state.
func NewNonOverlapTimeEntryScheduler(state *ValidationState, bufferMinutes int, now func() time.Time) *NonOverlapTimeEntryScheduler {
	if bufferMinutes < 0 {
		bufferMinutes = 0
	}
	if now == nil {
		now = time.Now
	}
	return &NonOverlapTimeEntryScheduler{
		state:  state,
		buffer: time.Duration(bufferMinutes) * time.Minute,
		now:    now,
		report: discardDiagnostic,
	}
}

// Schedule places entries in ascending tentative start order and returns them in input order.
// The ticket end time is extended to cover the last scheduled entry.
func (s *NonOverlapTimeEntryScheduler) Schedule(ticket *models.Ticket, entries []models.TimeEntry) []models.TimeEntry {
	out := make([]models.TimeEntry, len(entries))
	copy(out, entries)
	if len(out) == 0 {
		return out
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := out[order[a]], out[order[b]]
		if !ea.CreatedAt.Equal(eb.CreatedAt) {
			return ea.CreatedAt.Before(eb.CreatedAt)
		}
		return ea.Sequence < eb.Sequence
	})

	now := s.now()
	for _, idx := range order {
		entry := &out[idx]
		if entry.CreatedAt.IsZero() || entry.DurationMinutes <= 0 {
			s.report(models.ValidationDiagnostic{
				Kind:         models.DiagnosticEntrySkipped,
				Customer:     entry.Customer,
				TicketNumber: entry.TicketNumber,
				Sequence:     entry.Sequence,
				Tech:         entry.Tech,
				Message:      "time entry has no start or duration",
			})
			continue
		}

		tech := entryTech(ticket, *entry)
		duration := entry.Duration()
		start, clamped := s.place(tech, entry.CreatedAt, duration, now)

		if clamped {
			s.report(s.entryDiagnostic(models.DiagnosticEntryClamped, *entry, tech, "time entry clamped to now", entry.CreatedAt, start))
		} else if !start.Equal(entry.CreatedAt) {
			s.report(s.entryDiagnostic(models.DiagnosticEntryShifted, *entry, tech, "time entry shifted to avoid overlap", entry.CreatedAt, start))
		}

		s.state.reserve(tech, TimeBlock{Start: start, End: start.Add(duration + s.buffer)})
		entry.CreatedAt = start

		if ticket != nil {
			s.extendTicket(ticket, start.Add(duration), now)
		}
	}

	return out
}

// place finds the first non-conflicting start at or after desired, retreating before the
// earliest conflicts when moving forward would cross now.
func (s *NonOverlapTimeEntryScheduler) place(tech string, desired time.Time, duration time.Duration, now time.Time) (time.Time, bool) {
	span := duration + s.buffer
	latest := now.Add(-duration)
	blocks := s.state.techBlocks(tech)

	candidate := desired
	clamped := false
	if candidate.After(latest) {
		candidate = latest
		clamped = true
	}

	// Each block can push the candidate forward at most once since it only increases.
	for moved := true; moved; {
		moved = false
		for _, b := range blocks {
			if b.overlaps(candidate, candidate.Add(span)) {
				candidate = b.End
				moved = true
				break
			}
		}
	}
	if !candidate.After(latest) {
		return candidate, clamped
	}

	// Each block can pull the candidate back at most once since it only decreases.
	candidate = latest
	for moved := true; moved; {
		moved = false
		for i := len(blocks) - 1; i >= 0; i-- {
			b := blocks[i]
			if b.overlaps(candidate, candidate.Add(span)) {
				candidate = b.Start.Add(-span)
				moved = true
				break
			}
		}
	}
	return candidate, true
}

func (s *NonOverlapTimeEntryScheduler) extendTicket(ticket *models.Ticket, entryEnd, now time.Time) {
	end := ticket.EndTime
	if entryEnd.After(end) {
		end = entryEnd
	}
	if end.After(now) {
		end = now
	}
	if end.Before(ticket.StartTime) {
		end = ticket.StartTime
	}
	ticket.EndTime = end
}

func (s *NonOverlapTimeEntryScheduler) entryDiagnostic(kind models.DiagnosticKind, entry models.TimeEntry, tech, message string, from, to time.Time) models.ValidationDiagnostic {
	return models.ValidationDiagnostic{
		Kind:         kind,
		Customer:     entry.Customer,
		TicketNumber: entry.TicketNumber,
		Sequence:     entry.Sequence,
		Tech:         tech,
		Message:      message,
		Meta: map[string]string{
			"from": from.Format(time.RFC3339),
			"to":   to.Format(time.RFC3339),
		},
	}
}

func entryTech(ticket *models.Ticket, entry models.TimeEntry) string {
	if tech := strings.TrimSpace(entry.Tech); tech != "" {
		return tech
	}
	if ticket != nil {
		if tech := strings.TrimSpace(ticket.AssignedTech); tech != "" {
			return tech
		}
	}
	return models.UnassignedTech
}

package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

type diagnosticSink func(models.ValidationDiagnostic)

func discardDiagnostic(models.ValidationDiagnostic) {}

// OpenTicketCapValidator keeps each technician under the open-ticket cap on every day a ticket is open.
type OpenTicketCapValidator struct {
	state         *ValidationState
	perTechCap    int
	unassignedCap int
	clampToNow    bool
	now           func() time.Time
	report        diagnosticSink
}

// NewOpenTicketCapValidator constructs the validator over a shared state.
func NewOpenTicketCapValidator(state *ValidationState, perTechCap, unassignedCap int, clampToNow bool, now func() time.Time) *OpenTicketCapValidator {
	if now == nil {
		now = time.Now
	}
	return &OpenTicketCapValidator{
		state:         state,
		perTechCap:    perTechCap,
		unassignedCap: unassignedCap,
		clampToNow:    clampToNow,
		now:           now,
		report:        discardDiagnostic,
	}
}

func (v *OpenTicketCapValidator) capFor(tech string) int {
	if tech == models.UnassignedTech {
		return v.unassignedCap
	}
	return v.perTechCap
}

// fits reports whether tech can take one more open ticket on every day in days.
func (v *OpenTicketCapValidator) fits(tech string, days []string) bool {
	limit := v.capFor(tech)
	for _, day := range days {
		if v.state.OpenCount(tech, day) >= limit {
			return false
		}
	}
	return true
}

// Validate clamps timestamps, reassigns the ticket when its tech is over cap and records the open span.
func (v *OpenTicketCapValidator) Validate(t *models.Ticket) *models.Ticket {
	if t == nil {
		return nil
	}
	if reason := skipReason(t); reason != "" {
		v.report(models.ValidationDiagnostic{
			Kind:         models.DiagnosticTicketSkipped,
			Customer:     t.Customer,
			TicketNumber: t.Number,
			Tech:         t.AssignedTech,
			Message:      reason,
		})
		return t
	}

	key := keyFor(t)
	v.state.releaseOpen(key)
	v.clamp(t)

	days := OpenSpanDays(t)
	current := t.AssignedTech
	if !v.fits(current, days) {
		next := ""
		for _, candidate := range v.state.roster {
			if candidate == current || candidate == models.UnassignedTech {
				continue
			}
			if v.fits(candidate, days) {
				next = candidate
				break
			}
		}
		if next == "" {
			next = models.UnassignedTech
		}

		kind := models.DiagnosticTicketReassigned
		if next == models.UnassignedTech && !v.fits(next, days) {
			kind = models.DiagnosticCapacityUnresolved
		}
		if next != current || kind == models.DiagnosticCapacityUnresolved {
			v.report(models.ValidationDiagnostic{
				Kind:         kind,
				Customer:     t.Customer,
				TicketNumber: t.Number,
				Tech:         next,
				Message:      fmt.Sprintf("open ticket cap reached for %s", current),
				Meta: map[string]string{
					"from":   current,
					"to":     next,
					"reason": "open_cap",
					"days":   strconv.Itoa(len(days)),
				},
			})
		}
		t.AssignedTech = next
	}

	v.state.recordOpen(key, t.AssignedTech, days)
	return t
}

func (v *OpenTicketCapValidator) clamp(t *models.Ticket) {
	clamped := false
	if v.clampToNow {
		now := v.now()
		if t.StartTime.After(now) {
			t.StartTime = now
			clamped = true
		}
		if t.EndTime.After(now) {
			t.EndTime = now
			clamped = true
		}
		if t.ClosedAt != nil && t.ClosedAt.After(now) {
			closed := now
			t.ClosedAt = &closed
			clamped = true
		}
	}
	if t.EndTime.Before(t.StartTime) {
		t.EndTime = t.StartTime
	}
	if clamped {
		v.report(models.ValidationDiagnostic{
			Kind:         models.DiagnosticTimestampClamped,
			Customer:     t.Customer,
			TicketNumber: t.Number,
			Tech:         t.AssignedTech,
			Message:      "ticket timestamps clamped to now",
		})
	}
}

// DailyCapValidator limits how many new tickets a technician receives per calendar day.
type DailyCapValidator struct {
	state    *ValidationState
	dailyCap int
	open     *OpenTicketCapValidator
	report   diagnosticSink
}

// NewDailyCapValidator links the daily cap to the open-ticket validator so reassignment honours both caps.
func NewDailyCapValidator(state *ValidationState, dailyCap int, open *OpenTicketCapValidator) *DailyCapValidator {
	return &DailyCapValidator{state: state, dailyCap: dailyCap, open: open, report: discardDiagnostic}
}

func (v *DailyCapValidator) underCap(tech, day string) bool {
	if tech == models.UnassignedTech {
		return true
	}
	return v.state.DailyCount(tech, day) < v.dailyCap
}

// Validate reassigns the ticket when its tech already reached the daily cap on the start date.
// Timestamps are left untouched.
func (v *DailyCapValidator) Validate(t *models.Ticket) *models.Ticket {
	if t == nil {
		return nil
	}
	if skipReason(t) != "" {
		return t
	}

	key := keyFor(t)
	v.state.releaseDaily(key)

	day := DayKey(t.StartTime)
	current := t.AssignedTech
	if !v.underCap(current, day) {
		days := OpenSpanDays(t)
		openHeld := v.state.ledger[key] != nil && v.state.ledger[key].hasOpen

		next := ""
		for _, candidate := range v.state.roster {
			if candidate == current || candidate == models.UnassignedTech {
				continue
			}
			if !v.underCap(candidate, day) {
				continue
			}
			if v.open != nil && !v.open.fits(candidate, days) {
				continue
			}
			next = candidate
			break
		}
		if next == "" {
			next = models.UnassignedTech
		}

		kind := models.DiagnosticTicketReassigned
		if next == models.UnassignedTech && v.open != nil && !v.open.fits(next, days) {
			kind = models.DiagnosticCapacityUnresolved
		}
		v.report(models.ValidationDiagnostic{
			Kind:         kind,
			Customer:     t.Customer,
			TicketNumber: t.Number,
			Tech:         next,
			Message:      fmt.Sprintf("daily ticket cap reached for %s on %s", current, day),
			Meta: map[string]string{
				"from":   current,
				"to":     next,
				"reason": "daily_cap",
				"day":    day,
			},
		})

		t.AssignedTech = next
		if openHeld {
			v.state.transferOpen(key, next)
		}
	}

	v.state.recordDaily(key, t.AssignedTech, day)
	return t
}

// OpenSpanDays lists the calendar days from the ticket start through its close, inclusive.
// An open ticket spans only its start date; a close before the start collapses to the start date.
func OpenSpanDays(t *models.Ticket) []string {
	start := t.StartTime
	closed := start
	if t.ClosedAt != nil && !t.ClosedAt.IsZero() {
		closed = t.ClosedAt.In(start.Location())
	}

	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	last := time.Date(closed.Year(), closed.Month(), closed.Day(), 0, 0, 0, 0, start.Location())
	if last.Before(first) {
		last = first
	}

	days := []string{DayKey(first)}
	for d := first.AddDate(0, 0, 1); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, DayKey(d))
	}
	return days
}

func skipReason(t *models.Ticket) string {
	switch {
	case strings.TrimSpace(t.AssignedTech) == "":
		return "ticket has no assigned tech"
	case t.StartTime.IsZero():
		return "ticket has no start time"
	default:
		return ""
	}
}

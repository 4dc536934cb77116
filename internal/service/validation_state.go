package service

import (
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

// dayLayout keys counters by calendar date in the timestamp's own location.
const dayLayout = "2006-01-02"

// DayKey returns the calendar date of t used to bucket capacity counters.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// TimeBlock is an occupied half-open interval [Start, End) on a technician's calendar.
type TimeBlock struct {
	Start time.Time
	End   time.Time
}

func (b TimeBlock) overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}

type techDay struct {
	tech string
	day  string
}

// ledgerKey identifies a ticket across validator passes. Unnumbered tickets are keyed by pointer.
type ledgerKey struct {
	ticket models.TicketKey
	ptr    *models.Ticket
}

func keyFor(t *models.Ticket) ledgerKey {
	if t.Number != 0 {
		return ledgerKey{ticket: t.Key()}
	}
	return ledgerKey{ptr: t}
}

type contribution struct {
	openTech  string
	openDays  []string
	dailyTech string
	dailyDay  string
	hasOpen   bool
	hasDaily  bool
}

// ValidationState is the run-scoped ledger shared by the validators and the scheduler.
type ValidationState struct {
	roster []string
	daily  map[techDay]int
	open   map[techDay]int
	blocks map[techDay][]TimeBlock
	days   map[string][]string
	ledger map[ledgerKey]*contribution
}

// NewValidationState builds an empty state. The roster keeps its order, drops blanks and
// duplicates, and always ends with the Unassigned tech.
func NewValidationState(roster []string) *ValidationState {
	seen := make(map[string]struct{}, len(roster)+1)
	ordered := make([]string, 0, len(roster)+1)
	for _, tech := range roster {
		tech = strings.TrimSpace(tech)
		if tech == "" {
			continue
		}
		if _, dup := seen[tech]; dup {
			continue
		}
		seen[tech] = struct{}{}
		ordered = append(ordered, tech)
	}
	if _, ok := seen[models.UnassignedTech]; !ok {
		ordered = append(ordered, models.UnassignedTech)
	}

	return &ValidationState{
		roster: ordered,
		daily:  make(map[techDay]int),
		open:   make(map[techDay]int),
		blocks: make(map[techDay][]TimeBlock),
		days:   make(map[string][]string),
		ledger: make(map[ledgerKey]*contribution),
	}
}

// Roster returns a copy of the ordered technician roster.
func (s *ValidationState) Roster() []string {
	out := make([]string, len(s.roster))
	copy(out, s.roster)
	return out
}

// DailyCount returns how many new tickets tech received on day.
func (s *ValidationState) DailyCount(tech, day string) int {
	return s.daily[techDay{tech, day}]
}

// OpenCount returns how many tickets tech holds open on day.
func (s *ValidationState) OpenCount(tech, day string) int {
	return s.open[techDay{tech, day}]
}

// Blocks returns a copy of tech's occupied blocks starting on day, ordered by start.
func (s *ValidationState) Blocks(tech, day string) []TimeBlock {
	src := s.blocks[techDay{tech, day}]
	out := make([]TimeBlock, len(src))
	copy(out, src)
	return out
}

func (s *ValidationState) entry(k ledgerKey) *contribution {
	c, ok := s.ledger[k]
	if !ok {
		c = &contribution{}
		s.ledger[k] = c
	}
	return c
}

func (s *ValidationState) recordOpen(k ledgerKey, tech string, days []string) {
	for _, day := range days {
		s.open[techDay{tech, day}]++
	}
	c := s.entry(k)
	c.openTech = tech
	c.openDays = append([]string(nil), days...)
	c.hasOpen = true
}

func (s *ValidationState) releaseOpen(k ledgerKey) {
	c, ok := s.ledger[k]
	if !ok || !c.hasOpen {
		return
	}
	for _, day := range c.openDays {
		s.decrement(s.open, techDay{c.openTech, day})
	}
	c.hasOpen = false
	c.openDays = nil
	c.openTech = ""
}

// transferOpen moves a ticket's recorded open contribution to another tech.
func (s *ValidationState) transferOpen(k ledgerKey, tech string) {
	c, ok := s.ledger[k]
	if !ok || !c.hasOpen || c.openTech == tech {
		return
	}
	days := c.openDays
	s.releaseOpen(k)
	s.recordOpen(k, tech, days)
}

func (s *ValidationState) recordDaily(k ledgerKey, tech, day string) {
	s.daily[techDay{tech, day}]++
	c := s.entry(k)
	c.dailyTech = tech
	c.dailyDay = day
	c.hasDaily = true
}

func (s *ValidationState) releaseDaily(k ledgerKey) {
	c, ok := s.ledger[k]
	if !ok || !c.hasDaily {
		return
	}
	s.decrement(s.daily, techDay{c.dailyTech, c.dailyDay})
	c.hasDaily = false
	c.dailyTech = ""
	c.dailyDay = ""
}

func (s *ValidationState) decrement(counts map[techDay]int, key techDay) {
	if counts[key] <= 1 {
		delete(counts, key)
		return
	}
	counts[key]--
}

// reserve records an occupied block under the day it starts on.
func (s *ValidationState) reserve(tech string, block TimeBlock) {
	key := techDay{tech, DayKey(block.Start)}
	list := s.blocks[key]
	idx := sort.Search(len(list), func(i int) bool { return list[i].Start.After(block.Start) })
	list = append(list, TimeBlock{})
	copy(list[idx+1:], list[idx:])
	list[idx] = block
	if len(list) == 1 {
		s.days[tech] = append(s.days[tech], key.day)
	}
	s.blocks[key] = list
}

// techBlocks returns every block of tech across days, ordered by start.
func (s *ValidationState) techBlocks(tech string) []TimeBlock {
	var out []TimeBlock
	for _, day := range s.days[tech] {
		out = append(out, s.blocks[techDay{tech, day}]...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

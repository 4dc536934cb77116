package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

// TicketStatsService summarises generated tickets per technician.
type TicketStatsService struct{}

// NewTicketStatsService constructs the service.
func NewTicketStatsService() *TicketStatsService {
	return &TicketStatsService{}
}

// Summarize counts tickets per technician, sorted by technician name. The profile column shows the
// registry's assignment, or the default profile for technicians without one.
func (s *TicketStatsService) Summarize(tickets []models.Ticket, registry *ProfileRegistry) []models.TechStats {
	if registry == nil {
		registry = NewProfileRegistry(nil, nil, nil, nil)
	}
	mapping := registry.TechProfileMapping()
	defaultName := registry.DefaultProfile().Name

	buckets := make(map[string]*models.TechStats)
	for _, ticket := range tickets {
		tech := strings.TrimSpace(ticket.AssignedTech)
		if tech == "" {
			tech = models.UnassignedTech
		}
		bucket, ok := buckets[tech]
		if !ok {
			profile, assigned := mapping[tech]
			if !assigned {
				profile = defaultName
			}
			bucket = &models.TechStats{Tech: tech, Profile: profile}
			buckets[tech] = bucket
		}
		bucket.Total++
		if IsResolvedStatus(ticket.Status) {
			bucket.Resolved++
		}
	}

	out := make([]models.TechStats, 0, len(buckets))
	for _, bucket := range buckets {
		bucket.OpenOrPending = bucket.Total - bucket.Resolved
		if bucket.OpenOrPending < 0 {
			bucket.OpenOrPending = 0
		}
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tech < out[j].Tech })
	return out
}

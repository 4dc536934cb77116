package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

func TestTicketStatsServiceSummarize(t *testing.T) {
	registry := NewProfileRegistry(map[string]interface{}{
		"default_profile": "steady",
		"profiles": map[string]interface{}{
			"steady": map[string]interface{}{},
			"rush":   map[string]interface{}{},
		},
		"tech_profiles": map[string]interface{}{"Bob": "rush"},
	}, nil, nil, nil)

	stats := NewTicketStatsService().Summarize([]models.Ticket{
		{AssignedTech: "Bob", Status: "Resolved"},
		{AssignedTech: "Bob", Status: "Open"},
		{AssignedTech: " Bob ", Status: "resolved - onsite"},
		{AssignedTech: "Alice", Status: "Waiting"},
		{AssignedTech: "", Status: "Open"},
	}, registry)

	assert.Equal(t, []models.TechStats{
		{Tech: "Alice", Profile: "steady", Total: 1, Resolved: 0, OpenOrPending: 1},
		{Tech: "Bob", Profile: "rush", Total: 3, Resolved: 2, OpenOrPending: 1},
		{Tech: models.UnassignedTech, Profile: "steady", Total: 1, Resolved: 0, OpenOrPending: 1},
	}, stats)
}

func TestTicketStatsServiceEmpty(t *testing.T) {
	stats := NewTicketStatsService().Summarize(nil, nil)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}

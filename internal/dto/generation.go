package dto

import (
	"time"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

// GenerateRequest captures POST /runs payload and CLI flags.
type GenerateRequest struct {
	Tickets    int    `json:"tickets" validate:"required,min=1,max=10000"`
	Seed       *int64 `json:"seed,omitempty"`
	IncludePDF bool   `json:"includePdf"`
}

// RunCreatedResponse is returned after enqueueing a generation run.
type RunCreatedResponse struct {
	ID     string           `json:"id"`
	Status models.RunStatus `json:"status"`
	Seed   int64            `json:"seed"`
}

// RunResponse exposes run progress and results.
type RunResponse struct {
	ID          string             `json:"id"`
	Status      models.RunStatus   `json:"status"`
	TicketCount int                `json:"ticketCount"`
	Seed        int64              `json:"seed"`
	IncludePDF  bool               `json:"includePdf"`
	Summary     *models.RunSummary `json:"summary,omitempty"`
	Artifacts   []models.Artifact  `json:"artifacts,omitempty"`
	Error       *string            `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	FinishedAt  *time.Time         `json:"finishedAt,omitempty"`
}

// NewRunResponse maps a run to its API shape. Summary is only set for finished runs.
func NewRunResponse(run *models.GenerationRun) *RunResponse {
	resp := &RunResponse{
		ID:          run.ID,
		Status:      run.Status,
		TicketCount: run.TicketCount,
		Seed:        run.Seed,
		IncludePDF:  run.IncludePDF,
		Artifacts:   run.Artifacts,
		CreatedAt:   run.CreatedAt,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
	if run.Status == models.RunStatusFinished {
		summary := run.Summary
		resp.Summary = &summary
	}
	if run.ErrorMessage != nil && *run.ErrorMessage != "" {
		resp.Error = run.ErrorMessage
	}
	return resp
}

// RunStatsResponse lists per-technician stats of a finished run.
type RunStatsResponse struct {
	ID             string             `json:"id"`
	Stats          []models.TechStats `json:"stats"`
	ProfileMapping map[string]string  `json:"profileMapping"`
}

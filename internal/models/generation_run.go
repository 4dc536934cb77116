package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus captures generation run lifecycle states.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "QUEUED"
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
)

// GenerationRun is the persisted record of one dataset synthesis.
type GenerationRun struct {
	ID           string       `db:"id" json:"id"`
	Status       RunStatus    `db:"status" json:"status"`
	TicketCount  int          `db:"ticket_count" json:"ticket_count"`
	Seed         int64        `db:"seed" json:"seed"`
	IncludePDF   bool         `db:"include_pdf" json:"include_pdf"`
	Summary      RunSummary   `db:"summary" json:"summary"`
	Artifacts    ArtifactList `db:"artifacts" json:"artifacts"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	StartedAt    *time.Time   `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}

// RunSummary is the reporting payload of a finished run, persisted as JSONB.
type RunSummary struct {
	Tickets        int                    `json:"tickets"`
	TimeEntries    int                    `json:"time_entries"`
	Diagnostics    map[DiagnosticKind]int `json:"diagnostics,omitempty"`
	TechStats      []TechStats            `json:"tech_stats,omitempty"`
	ProfileMapping map[string]string      `json:"profile_mapping,omitempty"`
}

// Value marshals the summary to JSON for persistence.
func (s RunSummary) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal run summary: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the summary.
func (s *RunSummary) Scan(value interface{}) error {
	data, err := jsonBytes(value, "RunSummary")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*s = RunSummary{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal run summary: %w", err)
	}
	return nil
}

// Artifact is an exported file belonging to a run.
type Artifact struct {
	Name         string     `json:"name"`
	Format       string     `json:"format"`
	RelativePath string     `json:"relative_path"`
	URL          string     `json:"url,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// ArtifactList persists as a JSON array.
type ArtifactList []Artifact

// Value marshals the list to JSON for persistence.
func (l ArtifactList) Value() (driver.Value, error) {
	if l == nil {
		l = ArtifactList{}
	}
	data, err := json.Marshal([]Artifact(l))
	if err != nil {
		return nil, fmt.Errorf("marshal artifacts: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON arrays into the list.
func (l *ArtifactList) Scan(value interface{}) error {
	data, err := jsonBytes(value, "ArtifactList")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*l = ArtifactList{}
		return nil
	}
	var out []Artifact
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal artifacts: %w", err)
	}
	*l = out
	return nil
}

func jsonBytes(value interface{}, target string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, target)
	}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("generation run not found")

const generationRunColumns = `id, status, ticket_count, seed, include_pdf, summary, artifacts, error_message, created_at, started_at, finished_at`

// UpdateGenerationRunParams defines the mutable run fields.
type UpdateGenerationRunParams struct {
	Status       *models.RunStatus
	Summary      *models.RunSummary
	Artifacts    *models.ArtifactList
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// GenerationRunRepository persists run metadata in Postgres.
type GenerationRunRepository struct {
	db *sqlx.DB
}

// NewGenerationRunRepository constructs the repository.
func NewGenerationRunRepository(db *sqlx.DB) *GenerationRunRepository {
	return &GenerationRunRepository{db: db}
}

// Create inserts a run row, filling id, status and creation time when empty.
func (r *GenerationRunRepository) Create(ctx context.Context, run *models.GenerationRun) error {
	prepareRun(run)
	const query = `INSERT INTO generation_runs (` + generationRunColumns + `)
VALUES (:id, :status, :ticket_count, :seed, :include_pdf, :summary, :artifacts, :error_message, :created_at, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create generation run: %w", err)
	}
	return nil
}

// GetByID returns a run by identifier.
func (r *GenerationRunRepository) GetByID(ctx context.Context, id string) (*models.GenerationRun, error) {
	const query = `SELECT ` + generationRunColumns + ` FROM generation_runs WHERE id = $1`
	var run models.GenerationRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get generation run: %w", err)
	}
	return &run, nil
}

// Update persists the provided changes.
func (r *GenerationRunRepository) Update(ctx context.Context, id string, params UpdateGenerationRunParams) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Summary != nil {
		add("summary", *params.Summary)
	}
	if params.Artifacts != nil {
		add("artifacts", *params.Artifacts)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.StartedAt != nil {
		add("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE generation_runs SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update generation run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ListQueued fetches queued runs, oldest first, for recovery after restart.
func (r *GenerationRunRepository) ListQueued(ctx context.Context, limit int) ([]models.GenerationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + generationRunColumns + ` FROM generation_runs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`
	var runs []models.GenerationRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued generation runs: %w", err)
	}
	return runs, nil
}

func prepareRun(run *models.GenerationRun) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusQueued
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

const datasetBatchSize = 500

type ticketRow struct {
	RunID string `db:"run_id"`
	models.Ticket
}

type timeEntryRow struct {
	RunID string `db:"run_id"`
	models.TimeEntry
}

// DatasetRepository stores the tickets and time entries produced by a run.
type DatasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository constructs the repository.
func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Save replaces the dataset of runID in a single transaction so retried runs never duplicate rows.
func (r *DatasetRepository) Save(ctx context.Context, runID string, tickets []models.Ticket, entries []models.TimeEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dataset tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM generated_time_entries WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear time entries: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM generated_tickets WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear tickets: %w", err)
	}

	const ticketQuery = `INSERT INTO generated_tickets (run_id, customer, ticket_number, contact, subject, description, issue_type, status, assigned_tech, priority, start_time, end_time, closed_at)
VALUES (:run_id, :customer, :ticket_number, :contact, :subject, :description, :issue_type, :status, :assigned_tech, :priority, :start_time, :end_time, :closed_at)`
	for start := 0; start < len(tickets); start += datasetBatchSize {
		end := minBatchEnd(start, len(tickets))
		rows := make([]ticketRow, 0, end-start)
		for _, ticket := range tickets[start:end] {
			rows = append(rows, ticketRow{RunID: runID, Ticket: ticket})
		}
		if _, err = tx.NamedExecContext(ctx, ticketQuery, rows); err != nil {
			return fmt.Errorf("insert tickets: %w", err)
		}
	}

	const entryQuery = `INSERT INTO generated_time_entries (run_id, customer, ticket_number, sequence, tech, duration_minutes, visibility, billable_status, labor_type, created_at, notes, dependencies)
VALUES (:run_id, :customer, :ticket_number, :sequence, :tech, :duration_minutes, :visibility, :billable_status, :labor_type, :created_at, :notes, :dependencies)`
	for start := 0; start < len(entries); start += datasetBatchSize {
		end := minBatchEnd(start, len(entries))
		rows := make([]timeEntryRow, 0, end-start)
		for _, entry := range entries[start:end] {
			rows = append(rows, timeEntryRow{RunID: runID, TimeEntry: entry})
		}
		if _, err = tx.NamedExecContext(ctx, entryQuery, rows); err != nil {
			return fmt.Errorf("insert time entries: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset tx: %w", err)
	}
	return nil
}

// ListTickets returns the stored tickets of a run ordered by ticket number.
func (r *DatasetRepository) ListTickets(ctx context.Context, runID string) ([]models.Ticket, error) {
	const query = `SELECT customer, ticket_number, contact, subject, description, issue_type, status, assigned_tech, priority, start_time, end_time, closed_at
FROM generated_tickets WHERE run_id = $1 ORDER BY ticket_number ASC`
	var tickets []models.Ticket
	if err := r.db.SelectContext(ctx, &tickets, query, runID); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

func minBatchEnd(start, total int) int {
	end := start + datasetBatchSize
	if end > total {
		return total
	}
	return end
}

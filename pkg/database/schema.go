package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS generation_runs (
	id UUID PRIMARY KEY,
	status TEXT NOT NULL,
	ticket_count INTEGER NOT NULL,
	seed BIGINT NOT NULL,
	include_pdf BOOLEAN NOT NULL DEFAULT FALSE,
	summary JSONB NOT NULL DEFAULT '{}'::jsonb,
	artifacts JSONB NOT NULL DEFAULT '[]'::jsonb,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS generated_tickets (
	run_id UUID NOT NULL REFERENCES generation_runs(id) ON DELETE CASCADE,
	customer TEXT NOT NULL,
	ticket_number INTEGER NOT NULL,
	contact TEXT NOT NULL,
	subject TEXT NOT NULL,
	description TEXT NOT NULL,
	issue_type TEXT NOT NULL,
	status TEXT NOT NULL,
	assigned_tech TEXT NOT NULL,
	priority TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	closed_at TIMESTAMPTZ,
	PRIMARY KEY (run_id, customer, ticket_number)
)`,
	`CREATE TABLE IF NOT EXISTS generated_time_entries (
	run_id UUID NOT NULL REFERENCES generation_runs(id) ON DELETE CASCADE,
	customer TEXT NOT NULL,
	ticket_number INTEGER NOT NULL,
	sequence INTEGER NOT NULL,
	tech TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL,
	visibility TEXT NOT NULL,
	billable_status TEXT NOT NULL,
	labor_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	notes TEXT NOT NULL,
	dependencies JSONB NOT NULL DEFAULT '[]'::jsonb,
	PRIMARY KEY (run_id, customer, ticket_number, sequence)
)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_runs_status ON generation_runs (status, created_at)`,
}

// EnsureSchema creates the run tables when they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/helpdesk-datagen/internal/models"
)

func TestDatasetRepositorySave(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	tickets := []models.Ticket{{Customer: "Acme", Number: 1001, AssignedTech: "Alice", StartTime: start, EndTime: start.Add(time.Hour)}}
	entries := []models.TimeEntry{{Customer: "Acme", TicketNumber: 1001, Sequence: 1, Tech: "Alice", DurationMinutes: 30, CreatedAt: start, Dependencies: models.IntList{}}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generated_time_entries WHERE run_id = $1")).WithArgs("run-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generated_tickets WHERE run_id = $1")).WithArgs("run-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO generated_tickets")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO generated_time_entries")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), "run-1", tickets, entries))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositorySaveRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generated_time_entries")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generated_tickets")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO generated_tickets")).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), "run-1", []models.Ticket{{Customer: "Acme", Number: 1}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert tickets")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryListTickets(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDatasetRepository(db)

	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"customer", "ticket_number", "contact", "subject", "description", "issue_type", "status", "assigned_tech", "priority", "start_time", "end_time", "closed_at"}).
		AddRow("Acme", 1001, "Jordan", "Printer", "Offline", "Hardware", "Open", "Alice", "Low", start, start.Add(time.Hour), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM generated_tickets WHERE run_id = $1 ORDER BY ticket_number ASC")).
		WithArgs("run-1").
		WillReturnRows(rows)

	tickets, err := repo.ListTickets(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Alice", tickets[0].AssignedTech)
	assert.Nil(t, tickets[0].ClosedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMinBatchEnd(t *testing.T) {
	assert.Equal(t, 500, minBatchEnd(0, 1200))
	assert.Equal(t, 1200, minBatchEnd(1000, 1200))
}

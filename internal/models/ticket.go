package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UnassignedTech is the catch-all assignee that absorbs tickets no technician can take.
const UnassignedTech = "Unassigned"

// Ticket is a single synthetic helpdesk ticket.
type Ticket struct {
	Customer     string     `db:"customer" json:"customer"`
	Number       int        `db:"ticket_number" json:"ticket_number"`
	Contact      string     `db:"contact" json:"contact"`
	Subject      string     `db:"subject" json:"subject"`
	Description  string     `db:"description" json:"description"`
	IssueType    string     `db:"issue_type" json:"issue_type"`
	Status       string     `db:"status" json:"status"`
	AssignedTech string     `db:"assigned_tech" json:"assigned_tech"`
	Priority     string     `db:"priority" json:"priority"`
	StartTime    time.Time  `db:"start_time" json:"start_time"`
	EndTime      time.Time  `db:"end_time" json:"end_time"`
	ClosedAt     *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}

// Clone returns a copy that shares no pointers with the receiver.
func (t Ticket) Clone() Ticket {
	if t.ClosedAt != nil {
		closed := *t.ClosedAt
		t.ClosedAt = &closed
	}
	return t
}

// TicketKey identifies a ticket within a run.
type TicketKey struct {
	Customer string
	Number   int
}

// Key returns the ticket identity.
func (t Ticket) Key() TicketKey {
	return TicketKey{Customer: t.Customer, Number: t.Number}
}

// TimeEntry is a unit of logged work against a ticket.
type TimeEntry struct {
	Customer        string    `db:"customer" json:"customer"`
	TicketNumber    int       `db:"ticket_number" json:"ticket_number"`
	Sequence        int       `db:"sequence" json:"sequence"`
	Tech            string    `db:"tech" json:"tech"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Visibility      string    `db:"visibility" json:"visibility"`
	BillableStatus  string    `db:"billable_status" json:"billable_status"`
	LaborType       string    `db:"labor_type" json:"labor_type"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	Notes           string    `db:"notes" json:"notes"`
	Dependencies    IntList   `db:"dependencies" json:"dependencies"`
}

// Duration returns the entry length.
func (e TimeEntry) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// IntList persists as a JSON array.
type IntList []int

// Value marshals the list to JSON for persistence.
func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		l = IntList{}
	}
	data, err := json.Marshal([]int(l))
	if err != nil {
		return nil, fmt.Errorf("marshal int list: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON arrays into the list.
func (l *IntList) Scan(value interface{}) error {
	data, err := jsonBytes(value, "IntList")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*l = IntList{}
		return nil
	}
	var out []int
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal int list: %w", err)
	}
	*l = out
	return nil
}

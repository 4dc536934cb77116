package models

// DiagnosticKind classifies a non-fatal engine report.
type DiagnosticKind string

const (
	DiagnosticTicketReassigned   DiagnosticKind = "TICKET_REASSIGNED"
	DiagnosticCapacityUnresolved DiagnosticKind = "CAPACITY_UNRESOLVED"
	DiagnosticTimestampClamped   DiagnosticKind = "TIMESTAMP_CLAMPED"
	DiagnosticTicketSkipped      DiagnosticKind = "TICKET_SKIPPED"
	DiagnosticEntrySkipped       DiagnosticKind = "ENTRY_SKIPPED"
	DiagnosticEntryShifted       DiagnosticKind = "ENTRY_SHIFTED"
	DiagnosticEntryClamped       DiagnosticKind = "ENTRY_CLAMPED"
)

// ValidationDiagnostic records a correction or skip made while validating a run.
type ValidationDiagnostic struct {
	Kind         DiagnosticKind    `json:"kind"`
	Customer     string            `json:"customer,omitempty"`
	TicketNumber int               `json:"ticket_number,omitempty"`
	Sequence     int               `json:"sequence,omitempty"`
	Tech         string            `json:"tech,omitempty"`
	Message      string            `json:"message"`
	Meta         map[string]string `json:"meta,omitempty"`
}

package models

// SeedData holds the value lists tickets and time entries are sampled from.
type SeedData struct {
	Customers     []string `json:"customers"`
	Contacts      []string `json:"contacts"`
	Descriptions  []string `json:"descriptions"`
	IssueTypes    []string `json:"issue_types"`
	Priorities    []string `json:"priorities"`
	Statuses      []string `json:"statuses"`
	Subjects      []string `json:"subjects"`
	Techs         []string `json:"techs"`
	LaborTypes    []string `json:"labor_types"`
	NoteTemplates []string `json:"note_templates"`
}

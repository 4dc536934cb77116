package models

// TechStats aggregates a technician's tickets for reporting.
type TechStats struct {
	Tech          string `json:"tech"`
	Profile       string `json:"profile"`
	Total         int    `json:"total"`
	Resolved      int    `json:"resolved"`
	OpenOrPending int    `json:"open_or_pending"`
}

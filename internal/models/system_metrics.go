package models

import "time"

// SystemMetrics is a point-in-time view of service counters.
type SystemMetrics struct {
	CacheHitRatio            float64                   `json:"cacheHitRatio"`
	CacheHits                uint64                    `json:"cacheHits"`
	CacheMisses              uint64                    `json:"cacheMisses"`
	RequestsTotal            uint64                    `json:"requestsTotal"`
	AverageRequestDurationMs float64                   `json:"averageRequestDurationMs"`
	DBQueryCount             uint64                    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64                   `json:"averageDbQueryDurationMs"`
	Runs                     map[RunStatus]uint64      `json:"runs"`
	TicketsGenerated         uint64                    `json:"ticketsGenerated"`
	TimeEntriesGenerated     uint64                    `json:"timeEntriesGenerated"`
	Diagnostics              map[DiagnosticKind]uint64 `json:"diagnostics"`
	Goroutines               int                       `json:"goroutines"`
	GeneratedAt              time.Time                 `json:"generatedAt"`
}

// Package loadgen drives a running readiness service with synthetic squads
// and checks the derived results against the documented invariants.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL string        // Base URL of the service
	Players int           // Number of synthetic players
	Days    int           // Days of history per player
	End     time.Time     // Last generated day; zero means yesterday
	Seed    uint64        // Generator seed; equal seeds give equal squads
	Workers int           // Concurrent requests
	RPS     float64       // Request pacing; zero disables it
	Timeout time.Duration // HTTP request timeout
	Settle  time.Duration // How long to wait for ingestion to land
	Verbose bool          // Log every violation, not just the first few
}

// Stats holds run statistics.
type Stats struct {
	Players          int
	MetricRecords    int
	Sessions         int
	BatchesSubmitted int
	BatchesAccepted  int
	BatchesDuplicate int
	BatchesFailed    int
	Queries          int
	Violations       int
	Alerts           int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

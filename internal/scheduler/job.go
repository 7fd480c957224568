package scheduler

import (
	"context"
	"time"
)

const maxHistory = 100

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
	// Schedule is a cron expression with a leading seconds field,
	// e.g. "0 0 3 * * *", or a descriptor such as "@daily".
	Schedule() string
}

// JobResult records one execution.
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory keeps the most recent results of a job.
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest past the bound.
func (h *JobHistory) AddResult(r JobResult) {
	h.Results = append(h.Results, r)
	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

func (h *JobHistory) failures() int {
	n := 0
	for _, r := range h.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// JobStats summarizes a job's history.
type JobStats struct {
	JobName      string        `json:"job_name"`
	Schedule     string        `json:"schedule"`
	TotalRuns    int           `json:"total_runs"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// Package scheduler runs periodic jobs such as the nightly readiness refresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/readiness/pkg/logger"
)

var (
	ErrJobExists   = errors.New("job already registered")
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job already running")
)

// Scheduler runs registered jobs on their cron schedules. A job never
// overlaps with itself.
type Scheduler struct {
	cron    *cron.Cron
	logger  logger.Logger
	mu      sync.RWMutex
	jobs    map[string]Job
	history map[string]*JobHistory
	running map[string]bool
	timeout time.Duration
}

// New creates a scheduler whose expressions carry a seconds field.
// timeout bounds each run; zero means no bound.
func New(timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		logger:  logger.Named("scheduler"),
		jobs:    make(map[string]Job),
		history: make(map[string]*JobHistory),
		running: make(map[string]bool),
		timeout: timeout,
	}
}

// AddJob registers a job on its schedule.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}
	if _, err := s.cron.AddFunc(job.Schedule(), func() {
		_ = s.runJob(context.Background(), job)
	}); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	s.jobs[name] = job
	s.history[name] = &JobHistory{}

	s.logger.Info(context.Background(), "job added to scheduler",
		logger.String("job", name),
		logger.String("schedule", job.Schedule()),
	)
	return nil
}

// Start starts the cron loop in the background.
func (s *Scheduler) Start() {
	s.logger.Info(context.Background(), "starting scheduler")
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info(ctx, "stopping scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info(ctx, "scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn(ctx, "scheduler stop timed out")
	}
}

// RunJob runs a job immediately and waits for it.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.runJob(ctx, job)
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.logger.Warn(ctx, "job still running, skipping", logger.String("job", name))
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	s.running[name] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info(ctx, "job started", logger.String("job", name))
	err := job.Run(ctx)
	end := time.Now()

	result := JobResult{JobName: name, StartTime: start, EndTime: end, Duration: end.Sub(start), Success: err == nil}
	if err != nil {
		result.Error = err.Error()
	}
	s.mu.Lock()
	if h, ok := s.history[name]; ok {
		h.AddResult(result)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error(ctx, "job failed", logger.String("job", name), logger.Duration("duration", result.Duration), logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "job completed", logger.String("job", name), logger.Duration("duration", result.Duration))
	return nil
}

// GetJobStats returns statistics for every job, sorted by name.
func (s *Scheduler) GetJobStats() []JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStats, 0, len(s.jobs))
	for name, job := range s.jobs {
		h := s.history[name]
		failed := h.failures()
		st := JobStats{
			JobName:      name,
			Schedule:     job.Schedule(),
			TotalRuns:    len(h.Results),
			SuccessCount: len(h.Results) - failed,
			FailureCount: failed,
		}
		if n := len(h.Results); n > 0 {
			last := h.Results[n-1]
			st.LastRun = &last.StartTime
			st.LastDuration = last.Duration
			st.LastError = last.Error
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })
	return out
}

package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/types"
	"github.com/okian/readiness/pkg/logger"
	"github.com/okian/readiness/pkg/metrics"
)

// RefreshJobName is the name of the nightly refresh.
const RefreshJobName = "readiness-refresh"

// Refresher is the part of the query service the refresh drives.
type Refresher interface {
	ListPlayers(ctx context.Context) ([]string, error)
	GetReadiness(ctx context.Context, playerID string, from, to time.Time) ([]types.ReadinessPoint, error)
	GetAlerts(ctx context.Context, playerID string, from, to time.Time) ([]types.Alert, error)
}

// RefreshJob recomputes readiness and alerts for every player over a
// trailing window. Results land in the cache; rerunning is harmless.
type RefreshJob struct {
	svc          Refresher
	schedule     string
	lookbackDays int
	concurrency  int
	clock        func() time.Time
	logger       logger.Logger
}

// RefreshOption configures a RefreshJob.
type RefreshOption func(*RefreshJob)

// WithSchedule sets the cron expression.
func WithSchedule(spec string) RefreshOption {
	return func(j *RefreshJob) {
		if spec != "" {
			j.schedule = spec
		}
	}
}

// WithLookbackDays sets the trailing window length.
func WithLookbackDays(n int) RefreshOption {
	return func(j *RefreshJob) {
		if n > 0 {
			j.lookbackDays = n
		}
	}
}

// WithConcurrency bounds the number of players refreshed at once.
func WithConcurrency(n int) RefreshOption {
	return func(j *RefreshJob) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

// WithClock injects the source of "today".
func WithClock(now func() time.Time) RefreshOption {
	return func(j *RefreshJob) {
		if now != nil {
			j.clock = now
		}
	}
}

// NewRefreshJob creates the refresh job.
func NewRefreshJob(svc Refresher, opts ...RefreshOption) *RefreshJob {
	j := &RefreshJob{
		svc:          svc,
		schedule:     "0 0 3 * * *",
		lookbackDays: 28,
		concurrency:  4,
		clock:        time.Now,
		logger:       logger.Named("refresh"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *RefreshJob) Name() string     { return RefreshJobName }
func (j *RefreshJob) Schedule() string { return j.schedule }

// Run refreshes every player. A player that fails is logged and counted;
// the run fails if any player failed or ctx ended.
func (j *RefreshJob) Run(ctx context.Context) error {
	start := time.Now()
	to := model.Day(j.clock())
	from := to.AddDate(0, 0, -(j.lookbackDays - 1))

	players, err := j.svc.ListPlayers(ctx)
	if err != nil {
		metrics.RecordRefreshRun("error", time.Since(start).Seconds(), 0)
		return fmt.Errorf("listing players: %w", err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, id := range players {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := j.refresh(gctx, id, from, to); err != nil {
				failed.Add(1)
				j.logger.Warn(gctx, "player refresh failed", logger.String("player_id", id), logger.Error(err))
			}
			return nil
		})
	}
	err = g.Wait()

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "cancelled"
	case failed.Load() > 0:
		outcome = "partial"
		err = fmt.Errorf("%d of %d players failed", failed.Load(), len(players))
	}
	metrics.RecordRefreshRun(outcome, time.Since(start).Seconds(), len(players))
	j.logger.Info(ctx, "refresh finished",
		logger.Int("players", len(players)),
		logger.Int64("failed", failed.Load()),
		logger.String("from", model.FormatDate(from)),
		logger.String("to", model.FormatDate(to)),
	)
	return err
}

func (j *RefreshJob) refresh(ctx context.Context, playerID string, from, to time.Time) error {
	if _, err := j.svc.GetReadiness(ctx, playerID, from, to); err != nil {
		return err
	}
	_, err := j.svc.GetAlerts(ctx, playerID, from, to)
	return err
}

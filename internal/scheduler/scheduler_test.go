package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/types"
	"github.com/okian/readiness/internal/scheduler"
	"github.com/okian/readiness/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeService struct {
	mu        sync.Mutex
	players   []string
	listErr   error
	failFor   string
	readiness map[string][2]time.Time
	alerts    []string
}

func (f *fakeService) ListPlayers(context.Context) ([]string, error) {
	return f.players, f.listErr
}

func (f *fakeService) GetReadiness(_ context.Context, id string, from, to time.Time) ([]types.ReadinessPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.failFor {
		return nil, errors.New("store down")
	}
	f.readiness[id] = [2]time.Time{from, to}
	return nil, nil
}

func (f *fakeService) GetAlerts(_ context.Context, id string, _, _ time.Time) ([]types.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, id)
	return nil, nil
}

func clock() time.Time {
	return time.Date(2024, 3, 28, 3, 0, 0, 0, time.UTC)
}

func TestRefreshJob(t *testing.T) {
	Convey("Given three players", t, func() {
		svc := &fakeService{players: []string{"p1", "p2", "p3"}, readiness: map[string][2]time.Time{}}
		job := scheduler.NewRefreshJob(svc,
			scheduler.WithLookbackDays(7),
			scheduler.WithConcurrency(2),
			scheduler.WithClock(clock),
		)

		Convey("When the job runs", func() {
			err := job.Run(context.Background())

			Convey("Then every player is refreshed over the trailing window", func() {
				So(err, ShouldBeNil)
				So(svc.readiness, ShouldHaveLength, 3)
				w := svc.readiness["p2"]
				So(model.FormatDate(w[0]), ShouldEqual, "2024-03-22")
				So(model.FormatDate(w[1]), ShouldEqual, "2024-03-28")
				So(svc.alerts, ShouldHaveLength, 3)
			})
		})

		Convey("When one player fails", func() {
			svc.failFor = "p2"
			err := job.Run(context.Background())

			Convey("Then the others are still refreshed and the run reports the failure", func() {
				So(err, ShouldNotBeNil)
				So(svc.readiness, ShouldHaveLength, 2)
				So(svc.alerts, ShouldNotContain, "p2")
			})
		})

		Convey("When players cannot be listed", func() {
			svc.listErr = errors.New("boom")
			So(job.Run(context.Background()), ShouldNotBeNil)
		})

		Convey("The default schedule runs nightly at 03:00", func() {
			So(job.Schedule(), ShouldEqual, "0 0 3 * * *")
			So(job.Name(), ShouldEqual, scheduler.RefreshJobName)
		})
	})
}

type blockingJob struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingJob) Name() string     { return "blocking" }
func (b *blockingJob) Schedule() string { return "@every 1h" }
func (b *blockingJob) Run(ctx context.Context) error {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler with the refresh job", t, func() {
		s := scheduler.New(time.Minute)
		svc := &fakeService{players: []string{"p1"}, readiness: map[string][2]time.Time{}}
		So(s.AddJob(scheduler.NewRefreshJob(svc, scheduler.WithClock(clock))), ShouldBeNil)

		Convey("Registering it twice fails", func() {
			err := s.AddJob(scheduler.NewRefreshJob(svc))
			So(errors.Is(err, scheduler.ErrJobExists), ShouldBeTrue)
		})

		Convey("An invalid expression is rejected", func() {
			err := s.AddJob(scheduler.NewRefreshJob(svc, scheduler.WithSchedule("not cron")))
			So(err, ShouldNotBeNil)
		})

		Convey("When run manually twice", func() {
			So(s.RunJob(context.Background(), scheduler.RefreshJobName), ShouldBeNil)
			svc.listErr = errors.New("boom")
			So(s.RunJob(context.Background(), scheduler.RefreshJobName), ShouldNotBeNil)

			Convey("Then the history records both runs", func() {
				stats := s.GetJobStats()
				So(stats, ShouldHaveLength, 1)
				So(stats[0].TotalRuns, ShouldEqual, 2)
				So(stats[0].SuccessCount, ShouldEqual, 1)
				So(stats[0].FailureCount, ShouldEqual, 1)
				So(stats[0].LastRun, ShouldNotBeNil)
				So(stats[0].LastError, ShouldContainSubstring, "boom")
			})
		})

		Convey("Running an unknown job fails", func() {
			err := s.RunJob(context.Background(), "nope")
			So(errors.Is(err, scheduler.ErrJobNotFound), ShouldBeTrue)
		})

		Convey("Start and Stop return", func() {
			s.Start()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			s.Stop(ctx)
		})
	})

	Convey("Given a job that is still running", t, func() {
		s := scheduler.New(0)
		job := &blockingJob{release: make(chan struct{}), started: make(chan struct{})}
		So(s.AddJob(job), ShouldBeNil)

		done := make(chan error, 1)
		go func() { done <- s.RunJob(context.Background(), "blocking") }()
		<-job.started

		Convey("Then a second run is skipped", func() {
			err := s.RunJob(context.Background(), "blocking")
			So(errors.Is(err, scheduler.ErrJobRunning), ShouldBeTrue)
			close(job.release)
			So(<-done, ShouldBeNil)
		})
	})
}

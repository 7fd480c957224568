package loadgen_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/readiness/internal/adapters/http/api"
	"github.com/okian/readiness/internal/adapters/repository"
	service "github.com/okian/readiness/internal/app"
	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/loadgen"
	"github.com/okian/readiness/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var end = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	convey.Convey("Given a generated squad", t, func() {
		squad := loadgen.Generate(8, 35, end, 7)

		convey.Convey("Then the range covers the requested days", func() {
			convey.So(squad.To, convey.ShouldEqual, end)
			convey.So(model.DaysBetween(squad.From, squad.To), convey.ShouldEqual, 35)
			convey.So(squad.Players, convey.ShouldHaveLength, 8)
		})

		convey.Convey("Then the same seed gives the same squad", func() {
			convey.So(loadgen.Generate(8, 35, end, 7), convey.ShouldResemble, squad)
			convey.So(loadgen.Generate(8, 35, end, 8), convey.ShouldNotResemble, squad)
		})

		convey.Convey("Then every profile behaves as described", func() {
			spikeStart := model.FormatDate(end.AddDate(0, 0, -6))
			for _, p := range squad.Players {
				switch p.Profile {
				case loadgen.ProfileRested:
					convey.So(p.Sessions, convey.ShouldBeEmpty)
					convey.So(p.Metrics, convey.ShouldNotBeEmpty)
				case loadgen.ProfileSparse:
					for _, s := range p.Sessions {
						d, err := model.ParseDate(s.Date)
						convey.So(err, convey.ShouldBeNil)
						convey.So(d.Weekday(), convey.ShouldBeIn, time.Tuesday, time.Friday)
					}
				case loadgen.ProfileSpike:
					convey.So(p.Sessions, convey.ShouldHaveLength, 35)
					for _, s := range p.Sessions {
						if s.Date >= spikeStart {
							convey.So(s.DurationMinutes, convey.ShouldBeGreaterThanOrEqualTo, 150)
						} else {
							convey.So(s.DurationMinutes, convey.ShouldBeLessThanOrEqualTo, 90)
						}
					}
				case loadgen.ProfileSteady:
					convey.So(p.Sessions, convey.ShouldHaveLength, 35)
					convey.So(p.Metrics, convey.ShouldHaveLength, 35*8)
				}
			}
		})

		convey.Convey("Then matches are played on Saturdays", func() {
			for _, s := range squad.Players[0].Sessions {
				d, _ := model.ParseDate(s.Date)
				if d.Weekday() == time.Saturday {
					convey.So(s.SessionType, convey.ShouldEqual, "match")
					convey.So(s.PerceivedExertion, convey.ShouldEqual, 8)
				}
			}
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a service behind an HTTP server", t, func() {
		st, err := repository.Open(repository.MemoryPath)
		convey.So(err, convey.ShouldBeNil)
		svc := service.New(service.WithStore(st), service.WithWorkerCount(2))
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc).Register(mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		cfg := func() *loadgen.Config {
			return &loadgen.Config{
				BaseURL: srv.URL,
				Players: 4,
				Days:    35,
				End:     end,
				Seed:    42,
				Workers: 4,
				Timeout: 5 * time.Second,
				Settle:  10 * time.Second,
			}
		}

		convey.Convey("When a squad is loaded and verified", func() {
			stats, err := loadgen.Run(context.Background(), cfg())

			convey.Convey("Then no invariant is violated", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.Violations, convey.ShouldEqual, 0)
				convey.So(stats.Players, convey.ShouldEqual, 4)
				convey.So(stats.BatchesFailed, convey.ShouldEqual, 0)
				convey.So(stats.BatchesAccepted, convey.ShouldEqual, stats.BatchesSubmitted)
				convey.So(stats.Queries, convey.ShouldBeGreaterThan, 0)
				convey.So(stats.Alerts, convey.ShouldBeGreaterThan, 0)
			})

			convey.Convey("Then a rerun with the same seed only resubmits duplicates", func() {
				again, err := loadgen.Run(context.Background(), cfg())
				convey.So(err, convey.ShouldBeNil)
				convey.So(again.BatchesAccepted, convey.ShouldEqual, 0)
				convey.So(again.BatchesDuplicate, convey.ShouldEqual, stats.BatchesSubmitted)
			})
		})

		convey.Convey("When the range is longer than the service allows", func() {
			c := cfg()
			c.Days = 400
			_, err := loadgen.Run(context.Background(), c)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the service is unreachable", func() {
			c := cfg()
			c.BaseURL = "http://127.0.0.1:1"
			c.Timeout = 200 * time.Millisecond
			_, err := loadgen.Run(context.Background(), c)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

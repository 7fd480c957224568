package workload_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/types"
	"github.com/okian/readiness/internal/domain/workload"
	. "github.com/smartystreets/goconvey/convey"
)

var end = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func daily(days int, rpe, minutes float64) []model.SessionRecord {
	var out []model.SessionRecord
	for i := 0; i < days; i++ {
		out = append(out, model.SessionRecord{
			PlayerID:          "p1",
			Date:              end.AddDate(0, 0, -i),
			DurationMinutes:   minutes,
			PerceivedExertion: rpe,
		})
	}
	return out
}

func TestComputeSteadyLoad(t *testing.T) {
	Convey("Given 28 days of RPE 8 for 90 minutes", t, func() {
		sessions := daily(28, 8, 90)

		Convey("When workload is computed to the last day", func() {
			pts, err := workload.Compute(sessions, end, workload.DefaultOptions())
			So(err, ShouldBeNil)
			So(len(pts), ShouldEqual, 28)
			last := pts[len(pts)-1]

			Convey("Then acute and chronic loads are both 720", func() {
				So(last.Date, ShouldEqual, "2024-03-31")
				So(last.SessionLoad, ShouldEqual, 720)
				So(last.AcuteLoad, ShouldEqual, 720)
				So(last.ChronicLoad, ShouldEqual, 720)
			})

			Convey("Then ACWR is exactly 1", func() {
				So(last.ACWR, ShouldNotBeNil)
				So(*last.ACWR, ShouldEqual, 1.0)
			})

			Convey("Then the point is confident", func() {
				So(last.LowConfidence, ShouldBeFalse)
				So(last.ChronicDaysWithData, ShouldEqual, 28)
			})

			Convey("Then earlier points see a partially filled chronic window", func() {
				first := pts[0]
				So(first.Date, ShouldEqual, "2024-03-04")
				So(first.AcuteLoad, ShouldAlmostEqual, 720.0/7, 1e-9)
				So(first.ChronicLoad, ShouldAlmostEqual, 720.0/28, 1e-9)
				So(first.LowConfidence, ShouldBeTrue)
			})
		})
	})
}

func TestComputeUndefinedRatios(t *testing.T) {
	Convey("Given a constant daily load of 100", t, func() {
		sessions := daily(28, 5, 20)
		p, err := workload.Latest(sessions, end, workload.DefaultOptions())
		So(err, ShouldBeNil)

		Convey("Then monotony is null with a stdev reason", func() {
			So(p.Monotony, ShouldBeNil)
			So(p.MonotonyReason, ShouldEqual, types.ReasonStdevZero)
			So(p.Strain, ShouldBeNil)
		})
	})

	Convey("Given constant loads that are not exact binary fractions", t, func() {
		for _, c := range []struct{ rpe, minutes float64 }{{8.3, 91.7}, {0.1, 3}, {7.3, 61.7}} {
			p, err := workload.Latest(daily(28, c.rpe, c.minutes), end, workload.DefaultOptions())
			So(err, ShouldBeNil)
			So(p.Monotony, ShouldBeNil)
			So(p.MonotonyReason, ShouldEqual, types.ReasonStdevZero)
			So(p.Strain, ShouldBeNil)
		}
	})

	Convey("Given a player with no sessions", t, func() {
		pts, err := workload.Compute(nil, end, workload.DefaultOptions())
		So(err, ShouldBeNil)

		Convey("Then every point has a null ACWR with a reason", func() {
			for _, p := range pts {
				So(p.ACWR, ShouldBeNil)
				So(p.ACWRReason, ShouldEqual, types.ReasonChronicLoadZero)
				So(p.AcuteLoad, ShouldEqual, 0)
				So(p.LowConfidence, ShouldBeTrue)
			}
		})
	})
}

func TestComputeVariedLoad(t *testing.T) {
	Convey("Given a week with two sessions on one day", t, func() {
		sessions := []model.SessionRecord{
			{PlayerID: "p1", Date: end, DurationMinutes: 60, PerceivedExertion: 5},
			{PlayerID: "p1", Date: end, DurationMinutes: 30, PerceivedExertion: 4},
			{PlayerID: "p1", Date: end.AddDate(0, 0, -2), DurationMinutes: 60, PerceivedExertion: 7},
		}
		p, err := workload.Latest(sessions, end, workload.DefaultOptions())
		So(err, ShouldBeNil)

		Convey("Then same-day loads are summed", func() {
			So(p.SessionLoad, ShouldEqual, 420)
		})

		Convey("Then missing days count as zero in the averages", func() {
			So(p.AcuteLoad, ShouldAlmostEqual, 840.0/7, 1e-9)
			So(p.ChronicLoad, ShouldAlmostEqual, 840.0/28, 1e-9)
			So(*p.ACWR, ShouldAlmostEqual, 4.0, 1e-9)
		})

		Convey("Then monotony and strain are defined", func() {
			So(p.Monotony, ShouldNotBeNil)
			So(p.Strain, ShouldNotBeNil)
			So(*p.Strain, ShouldAlmostEqual, 840*(*p.Monotony), 1e-9)
		})

		Convey("Then two session days out of 28 are low confidence", func() {
			So(p.ChronicDaysWithData, ShouldEqual, 2)
			So(p.LowConfidence, ShouldBeTrue)
		})
	})
}

func TestComputeOptions(t *testing.T) {
	Convey("Given invalid windows", t, func() {
		opts := workload.DefaultOptions()
		opts.AcuteWindow = 30
		_, err := workload.Compute(nil, end, opts)
		So(errors.Is(err, model.ErrInvalidWindow), ShouldBeTrue)

		opts = workload.DefaultOptions()
		opts.ChronicWindow = 0
		_, err = workload.Compute(nil, end, opts)
		So(errors.Is(err, model.ErrInvalidWindow), ShouldBeTrue)
	})

	Convey("Given custom windows and length", t, func() {
		opts := workload.DefaultOptions()
		opts.AcuteWindow = 3
		opts.ChronicWindow = 21
		opts.Days = 5
		from, to := opts.Range(end)

		Convey("Then the look-back covers the chronic window before the first point", func() {
			So(model.FormatDate(to), ShouldEqual, "2024-03-31")
			So(model.DaysBetween(from, to), ShouldEqual, 5+21-1)
		})

		Convey("Then the requested number of points is returned", func() {
			pts, err := workload.Compute(daily(30, 6, 60), end, opts)
			So(err, ShouldBeNil)
			So(len(pts), ShouldEqual, 5)
			So(*pts[4].ACWR, ShouldEqual, 1.0)
		})
	})

	Convey("Given the EWMA method on a steady load", t, func() {
		opts := workload.DefaultOptions()
		opts.Method = workload.MethodEWMA
		p, err := workload.Latest(daily(60, 8, 90), end, opts)
		So(err, ShouldBeNil)

		Convey("Then the acute average converges faster than the chronic one", func() {
			So(p.AcuteLoad, ShouldBeGreaterThan, p.ChronicLoad)
			So(p.AcuteLoad, ShouldBeLessThanOrEqualTo, 720)
			So(*p.ACWR, ShouldBeGreaterThan, 1.0)
		})
	})

	Convey("Given an unknown method", t, func() {
		opts := workload.DefaultOptions()
		opts.Method = "banister"
		So(errors.Is(opts.Validate(), model.ErrInvalidWindow), ShouldBeTrue)
	})
}

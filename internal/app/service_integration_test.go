package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/readiness/internal/app"
	"github.com/okian/readiness/internal/domain/alerting"
	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/risk"
	"github.com/okian/readiness/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func wellness(player, date string, values map[string]float64) []model.MetricRecord {
	var out []model.MetricRecord
	for k, v := range values {
		out = append(out, model.MetricRecord{PlayerID: player, Date: day(date), Family: model.FamilyWellness, Key: k, Value: v})
	}
	return out
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a player training RPE 8 for 90 minutes every day for 28 days", t, func() {
		ctx := context.Background()
		st := seeded(nil, daily("steady", "2024-03-01", 28, 90, 8))
		svc := service.New(
			service.WithStore(st),
			service.WithWorkerCount(1),
			service.WithClock(func() time.Time { return day("2024-03-28").Add(15 * time.Hour) }),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then acute and chronic load are both 720 and the ratio is 1", func() {
			points, err := svc.GetWorkload(ctx, "steady", day("2024-03-28"), 0, 0, 1)
			So(err, ShouldBeNil)
			So(points, ShouldHaveLength, 1)
			p := points[0]
			So(p.Date, ShouldEqual, "2024-03-28")
			So(p.AcuteLoad, ShouldAlmostEqual, 720, 1e-9)
			So(p.ChronicLoad, ShouldAlmostEqual, 720, 1e-9)
			So(p.ACWR, ShouldNotBeNil)
			So(*p.ACWR, ShouldAlmostEqual, 1.0, 1e-9)
			So(p.LowConfidence, ShouldBeFalse)
		})

		Convey("Then identical daily loads leave monotony undefined", func() {
			points, err := svc.GetWorkload(ctx, "steady", day("2024-03-28"), 0, 0, 1)
			So(err, ShouldBeNil)
			So(points[0].Monotony, ShouldBeNil)
			So(points[0].MonotonyReason, ShouldEqual, types.ReasonStdevZero)
			So(points[0].Strain, ShouldBeNil)
		})

		Convey("Then a zero date means today from the injected clock", func() {
			points, err := svc.GetWorkload(ctx, "steady", time.Time{}, 0, 0, 0)
			So(err, ShouldBeNil)
			So(points, ShouldHaveLength, 28)
			So(points[27].Date, ShouldEqual, "2024-03-28")
		})

		Convey("Then a risk prediction is produced for every horizon", func() {
			var prev float64
			for _, h := range risk.Horizons {
				pred, err := svc.GetRiskPrediction(ctx, "steady", h, time.Time{})
				So(err, ShouldBeNil)
				So(pred.AsOfDate, ShouldEqual, "2024-03-28")
				So(pred.ModelVersion, ShouldEqual, risk.ModelVersion)
				So(pred.RiskClass, ShouldNotBeEmpty)
				So(pred.RiskScore, ShouldBeGreaterThanOrEqualTo, prev)
				So(pred.FeatureContributions, ShouldNotBeEmpty)
				So(pred.SampleSize, ShouldEqual, 28)
				So(pred.Confidence, ShouldEqual, risk.ConfidenceHigh)
				prev = pred.RiskScore
			}
		})

		Convey("Then a stricter risk model lowers the confidence", func() {
			m := risk.Baseline()
			m.MinCoverage, m.HighCoverage = 1, 1
			strict := service.New(
				service.WithStore(seeded(nil, daily("sparse", "2024-03-02", 27, 90, 8))),
				service.WithWorkerCount(1),
				service.WithPredictor(risk.NewPredictor(m)),
			)
			So(strict.Start(ctx), ShouldBeNil)
			defer strict.Stop()

			pred, err := strict.GetRiskPrediction(ctx, "sparse", 7, day("2024-03-28"))
			So(err, ShouldBeNil)
			So(pred.SampleSize, ShouldEqual, 27)
			So(pred.Confidence, ShouldEqual, risk.ConfidenceLow)
			So(pred.LowConfidence, ShouldBeTrue)
		})

		Convey("Then an unsupported horizon is rejected", func() {
			_, err := svc.GetRiskPrediction(ctx, "steady", 10, time.Time{})
			So(errors.Is(err, model.ErrInvalidHorizon), ShouldBeTrue)
		})

		Convey("Then training completeness counts session days", func() {
			rep, err := svc.GetCompleteness(ctx, "steady", model.FamilyTraining, day("2024-03-01"), day("2024-03-28"))
			So(err, ShouldBeNil)
			So(rep.DaysWithData, ShouldEqual, 28)
			So(rep.CompletenessPct, ShouldAlmostEqual, 100, 1e-9)
		})

		Convey("Then structural errors win over the unknown player", func() {
			_, err := svc.GetReadiness(ctx, "ghost", day("2024-03-10"), day("2024-03-01"))
			So(errors.Is(err, model.ErrInvalidRange), ShouldBeTrue)

			_, err = svc.GetReadiness(ctx, "ghost", day("2023-01-01"), day("2024-03-01"))
			So(errors.Is(err, model.ErrInvalidRange), ShouldBeTrue)

			_, err = svc.GetSeries(ctx, "ghost", day("2024-03-01"), day("2024-03-02"), "fortnight", nil)
			So(errors.Is(err, model.ErrInvalidGrouping), ShouldBeTrue)

			_, err = svc.GetWorkload(ctx, "ghost", day("2024-03-01"), 30, 28, 0)
			So(errors.Is(err, model.ErrInvalidWindow), ShouldBeTrue)
			So(errors.Is(err, model.ErrInvalidRange), ShouldBeTrue)

			_, err = svc.GetWorkload(ctx, "ghost", day("2024-03-01"), 7, 3000000, 1)
			So(errors.Is(err, model.ErrInvalidWindow), ShouldBeTrue)

			_, err = svc.GetWorkload(ctx, "ghost", day("2024-03-01"), 7, 28, 400)
			So(errors.Is(err, model.ErrInvalidRange), ShouldBeTrue)

			_, err = svc.GetCompleteness(ctx, "ghost", "diet", day("2024-03-01"), day("2024-03-02"))
			So(errors.Is(err, model.ErrInvalidFamily), ShouldBeTrue)
		})

		Convey("Then an unknown player is reported", func() {
			_, err := svc.GetReadiness(ctx, "ghost", day("2024-03-01"), day("2024-03-02"))
			So(errors.Is(err, model.ErrUnknownPlayer), ShouldBeTrue)
		})
	})

	Convey("Given a player who logs only sleep and wellness", t, func() {
		ctx := context.Background()
		var recs []model.MetricRecord
		for i := 0; i < 5; i++ {
			date := model.FormatDate(day("2024-03-01").AddDate(0, 0, i))
			recs = append(recs, wellness("rested", date, map[string]float64{"sleep_hours": 6, "mood": 10, "stress": 1})...)
		}
		svc := service.New(service.WithStore(seeded(recs, nil)), service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then there is no workload ratio", func() {
			points, err := svc.GetWorkload(ctx, "rested", day("2024-03-05"), 0, 0, 1)
			So(err, ShouldBeNil)
			So(points[0].ACWR, ShouldBeNil)
			So(points[0].ACWRReason, ShouldEqual, types.ReasonChronicLoadZero)
			So(points[0].LowConfidence, ShouldBeTrue)
		})

		Convey("Then training completeness is zero", func() {
			rep, err := svc.GetCompleteness(ctx, "rested", model.FamilyTraining, day("2024-03-01"), day("2024-03-05"))
			So(err, ShouldBeNil)
			So(rep.DaysWithData, ShouldEqual, 0)
			So(rep.CompletenessPct, ShouldEqual, 0)
		})

		Convey("Then readiness renormalizes over the present components", func() {
			points, err := svc.GetReadiness(ctx, "rested", day("2024-03-01"), day("2024-03-05"))
			So(err, ShouldBeNil)
			So(points, ShouldHaveLength, 5)
			for _, p := range points {
				So(p.Score, ShouldNotBeNil)
				So(*p.Score, ShouldBeBetweenOrEqual, 0, 100)
				So(*p.Score, ShouldAlmostEqual, 84.375, 1e-9)
				So(p.Components.Autonomic, ShouldBeNil)
				So(p.Components.Workload, ShouldBeNil)
			}
		})

		Convey("Then days without data have no score", func() {
			points, err := svc.GetReadiness(ctx, "rested", day("2024-03-06"), day("2024-03-06"))
			So(err, ShouldBeNil)
			So(points[0].Score, ShouldBeNil)
			So(points[0].Reason, ShouldEqual, types.ReasonNoInputs)
		})

		Convey("Then a daily series carries a null for missing days", func() {
			s, err := svc.GetSeries(ctx, "rested", day("2024-03-04"), day("2024-03-07"), "day", []string{"wellness.sleep_hours"})
			So(err, ShouldBeNil)
			So(s.Buckets, ShouldHaveLength, 4)
			So(*s.Buckets[0].Values["wellness.sleep_hours"], ShouldEqual, 6)
			So(s.Buckets[3].Values["wellness.sleep_hours"], ShouldBeNil)
		})

		Convey("Then a long silence raises a data gap alert", func() {
			alerts, err := svc.GetAlerts(ctx, "rested", day("2024-03-06"), day("2024-03-12"))
			So(err, ShouldBeNil)
			So(alerts, ShouldHaveLength, 1)
			So(alerts[0].Type, ShouldEqual, "data_gap")
			So(alerts[0].Date, ShouldEqual, "2024-03-12")
		})

		Convey("Then the gap is traced back through the observation lookback", func() {
			alerts, err := svc.GetAlerts(ctx, "rested", day("2024-03-10"), day("2024-03-12"))
			So(err, ShouldBeNil)
			So(alerts, ShouldHaveLength, 1)
			So(alerts[0].ObservedValue, ShouldEqual, 7)

			short := service.New(
				service.WithStore(seeded(recs, nil)),
				service.WithWorkerCount(1),
				service.WithObserveOptions(alerting.ObserveOptions{TrailingDays: 7, MinPriorScores: 3, Lookback: 0}),
			)
			So(short.Start(ctx), ShouldBeNil)
			defer short.Stop()
			alerts, err = short.GetAlerts(ctx, "rested", day("2024-03-10"), day("2024-03-12"))
			So(err, ShouldBeNil)
			So(alerts, ShouldBeEmpty)
		})

		Convey("When new wellness data is ingested", func() {
			before, err := svc.GetReadiness(ctx, "rested", day("2024-03-06"), day("2024-03-06"))
			So(err, ShouldBeNil)
			So(before[0].Score, ShouldBeNil)

			_, err = svc.SubmitMetrics(ctx, "late", wellness("rested", "2024-03-06", map[string]float64{"sleep_hours": 8}))
			So(err, ShouldBeNil)

			Convey("Then the cached result is invalidated", func() {
				So(waitFor(func() bool {
					after, err := svc.GetReadiness(ctx, "rested", day("2024-03-06"), day("2024-03-06"))
					return err == nil && after[0].Score != nil && *after[0].Score == 100
				}), ShouldBeTrue)
			})
		})
	})

	Convey("Given a load spike after three steady weeks", t, func() {
		ctx := context.Background()
		sessions := append(daily("spike", "2024-03-01", 21, 60, 5), daily("spike", "2024-03-22", 7, 100, 9)...)
		svc := service.New(service.WithStore(seeded(nil, sessions)), service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then a high load alert is raised on the last day", func() {
			alerts, err := svc.GetAlerts(ctx, "spike", day("2024-03-28"), day("2024-03-28"))
			So(err, ShouldBeNil)
			var kinds []string
			for _, a := range alerts {
				kinds = append(kinds, a.Type)
				if a.Type == "high_load" {
					So(a.ObservedValue, ShouldAlmostEqual, 2.0, 1e-9)
					So(a.Severity, ShouldEqual, types.SeverityWarning)
				}
			}
			So(kinds, ShouldContain, "high_load")
		})

		Convey("Then repeated queries return identical alerts", func() {
			a, err := svc.GetAlerts(ctx, "spike", day("2024-03-20"), day("2024-03-28"))
			So(err, ShouldBeNil)
			b, err := svc.GetAlerts(ctx, "spike", day("2024-03-20"), day("2024-03-28"))
			So(err, ShouldBeNil)
			So(b, ShouldResemble, a)
		})
	})
}

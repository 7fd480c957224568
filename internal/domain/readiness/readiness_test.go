package readiness_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/readiness"
	"github.com/okian/readiness/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var today = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func newScorer() *readiness.Scorer {
	s, err := readiness.NewScorer(readiness.DefaultConfig(), nil)
	if err != nil {
		panic(err)
	}
	return s
}

func TestScoreRenormalization(t *testing.T) {
	s := newScorer()

	Convey("Given only sleep and wellness inputs", t, func() {
		p := s.Score(readiness.Inputs{Date: today, SleepHours: f(7), Stress: f(3), Mood: f(8)})

		Convey("Then absent sub-scores are null", func() {
			So(p.Components.Autonomic, ShouldBeNil)
			So(p.Components.Recovery, ShouldBeNil)
			So(p.Components.Workload, ShouldBeNil)
		})

		Convey("Then the composite renormalizes over present weights", func() {
			So(*p.Components.Sleep, ShouldEqual, 87.5)
			So(*p.Components.Wellness, ShouldAlmostEqual, 700.0/9, 1e-9)
			want := (87.5*0.25 + 700.0/9*0.15) / 0.40
			So(*p.Score, ShouldAlmostEqual, want, 1e-9)
			So(*p.Score, ShouldBeBetweenOrEqual, 0, 100)
		})
	})

	Convey("Given every input at its optimum", t, func() {
		p := s.Score(readiness.Inputs{
			Date: today, SleepHours: f(9), HRV: f(70), HRVBaseline: f(60),
			Fatigue: f(1), Soreness: f(1), Stress: f(1), Mood: f(10), ACWR: f(1.1),
		})

		Convey("Then the score is clipped at 100", func() {
			So(*p.Score, ShouldAlmostEqual, 100, 1e-9)
			So(*p.Score, ShouldBeLessThanOrEqualTo, 100)
		})
	})

	Convey("Given no inputs", t, func() {
		p := s.Score(readiness.Inputs{Date: today})

		Convey("Then the score is null with a reason", func() {
			So(p.Score, ShouldBeNil)
			So(p.Reason, ShouldEqual, types.ReasonNoInputs)
			So(p.Date, ShouldEqual, "2024-03-31")
		})
	})
}

func TestSubScores(t *testing.T) {
	s := newScorer()

	Convey("Workload is flat inside the band and decays outside it", t, func() {
		score := func(a float64) float64 {
			return *s.Score(readiness.Inputs{Date: today, ACWR: f(a)}).Components.Workload
		}
		So(score(1.0), ShouldEqual, 100)
		So(score(0.8), ShouldEqual, 100)
		So(score(1.3), ShouldEqual, 100)
		So(score(0.4), ShouldAlmostEqual, 50, 1e-9)
		So(score(1.65), ShouldAlmostEqual, 50, 1e-9)
		So(score(2.5), ShouldEqual, 0)
		So(score(0), ShouldEqual, 0)
	})

	Convey("Autonomic uses the personal baseline when present", t, func() {
		p := s.Score(readiness.Inputs{Date: today, HRV: f(45), HRVBaseline: f(60)})
		So(*p.Components.Autonomic, ShouldAlmostEqual, 50, 1e-9)

		Convey("and absolute bounds otherwise", func() {
			p := s.Score(readiness.Inputs{Date: today, HRV: f(45)})
			So(*p.Components.Autonomic, ShouldAlmostEqual, 31.25, 1e-9)
		})

		Convey("and resting heart rate when HRV is missing", func() {
			p := s.Score(readiness.Inputs{Date: today, RestingHR: f(50)})
			So(*p.Components.Autonomic, ShouldAlmostEqual, 75, 1e-9)
		})
	})

	Convey("Recovery averages inverted fatigue and soreness", t, func() {
		p := s.Score(readiness.Inputs{Date: today, Fatigue: f(1), Soreness: f(10)})
		So(*p.Components.Recovery, ShouldAlmostEqual, 50, 1e-9)
	})

	Convey("Sleep quality stands in when hours are missing", t, func() {
		p := s.Score(readiness.Inputs{Date: today, SleepQuality: f(10)})
		So(*p.Components.Sleep, ShouldEqual, 100)
	})
}

func TestSeries(t *testing.T) {
	s := newScorer()
	rec := func(d time.Time, key string, v float64) model.MetricRecord {
		family := model.FamilyWellness
		if key == "hrv_rmssd" {
			family = model.FamilyAutonomic
		}
		return model.MetricRecord{PlayerID: "p1", Date: d, Family: family, Key: key, Value: v}
	}

	Convey("Given a week of stable HRV followed by a low reading", t, func() {
		var records []model.MetricRecord
		for i := 1; i <= 7; i++ {
			records = append(records, rec(today.AddDate(0, 0, -i), "hrv_rmssd", 60))
		}
		records = append(records, rec(today, "hrv_rmssd", 45), rec(today, "sleep_hours", 8))

		pts, err := s.Series(today.AddDate(0, 0, -1), today, records, map[string]*float64{
			"2024-03-31": f(1.0),
		})
		So(err, ShouldBeNil)
		So(len(pts), ShouldEqual, 2)

		Convey("Then today's autonomic score is relative to the baseline", func() {
			So(*pts[1].Components.Autonomic, ShouldAlmostEqual, 50, 1e-9)
			So(*pts[1].Components.Workload, ShouldEqual, 100)
			So(*pts[1].Components.Sleep, ShouldEqual, 100)
		})

		Convey("Then yesterday had too little baseline and uses absolute bounds", func() {
			So(*pts[0].Components.Autonomic, ShouldAlmostEqual, 50, 1e-9)
			So(pts[0].Components.Workload, ShouldBeNil)
		})
	})

	Convey("Given a reversed range", t, func() {
		_, err := s.Series(today, today.AddDate(0, 0, -1), nil, nil)
		So(errors.Is(err, model.ErrInvalidRange), ShouldBeTrue)
	})

	Convey("Given a day without any records", t, func() {
		pts, err := s.Series(today, today, nil, nil)
		So(err, ShouldBeNil)
		So(pts[0].Score, ShouldBeNil)
	})
}

func TestConfigValidation(t *testing.T) {
	Convey("Negative weights are rejected", t, func() {
		cfg := readiness.DefaultConfig()
		cfg.Weights.Sleep = -1
		_, err := readiness.NewScorer(cfg, nil)
		So(errors.Is(err, readiness.ErrInvalidWeights), ShouldBeTrue)
	})

	Convey("All-zero weights are rejected", t, func() {
		cfg := readiness.DefaultConfig()
		cfg.Weights = readiness.Weights{}
		_, err := readiness.NewScorer(cfg, nil)
		So(errors.Is(err, readiness.ErrInvalidWeights), ShouldBeTrue)
	})

	Convey("A broken ACWR band is rejected", t, func() {
		cfg := readiness.DefaultConfig()
		cfg.ACWRBandHigh = 2.5
		_, err := readiness.NewScorer(cfg, nil)
		So(errors.Is(err, readiness.ErrInvalidConfig), ShouldBeTrue)
	})
}

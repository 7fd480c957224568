package risk_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/risk"
	"github.com/okian/readiness/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var asOf = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func sum(p types.RiskPrediction) float64 {
	total := p.Intercept
	for _, c := range p.FeatureContributions {
		total += c.Contribution
	}
	return total
}

func TestPredict(t *testing.T) {
	p := risk.NewPredictor(risk.Baseline())

	Convey("Given a snapshot with every feature missing", t, func() {
		pred, err := p.Predict("p1", asOf, 7, risk.Snapshot{})
		So(err, ShouldBeNil)

		Convey("Then only the intercept contributes", func() {
			So(pred.RiskScore, ShouldAlmostEqual, 0.05, 1e-12)
			So(pred.RiskClass, ShouldEqual, risk.ClassLow)
			So(len(pred.FeatureContributions), ShouldEqual, 4)
			for _, c := range pred.FeatureContributions {
				So(c.Missing, ShouldBeTrue)
				So(c.Contribution, ShouldEqual, 0)
			}
		})

		Convey("Then the prediction is low confidence", func() {
			So(pred.LowConfidence, ShouldBeTrue)
			So(pred.Confidence, ShouldEqual, risk.ConfidenceLow)
			So(pred.ModelVersion, ShouldEqual, risk.ModelVersion)
			So(pred.AsOfDate, ShouldEqual, "2024-03-31")
		})
	})

	Convey("Given every feature at its ceiling", t, func() {
		s := risk.Snapshot{ACWR: f(2.0), Monotony: f(2.5), Strain: f(6000), ReadinessTrend: f(-5), SampleSize: 28, Window: 28}
		pred, err := p.Predict("p1", asOf, 7, s)
		So(err, ShouldBeNil)

		Convey("Then the score is the full additive total", func() {
			So(pred.RiskScore, ShouldAlmostEqual, 0.95, 1e-12)
			So(pred.RiskClass, ShouldEqual, risk.ClassVeryHigh)
		})

		Convey("Then contributions are ordered by size with name tiebreak", func() {
			names := []string{}
			for _, c := range pred.FeatureContributions {
				names = append(names, c.Feature)
			}
			So(names, ShouldResemble, []string{"acwr", "readiness_trend", "monotony", "strain"})
		})

		Convey("Then a fully covered chronic window is high confidence", func() {
			So(pred.Confidence, ShouldEqual, risk.ConfidenceHigh)
			So(pred.LowConfidence, ShouldBeFalse)
		})
	})

	Convey("Given a moderate snapshot across horizons", t, func() {
		s := risk.Snapshot{ACWR: f(1.65), Monotony: f(1.75), SampleSize: 21, Window: 28}
		p7, _ := p.Predict("p1", asOf, 7, s)
		p14, _ := p.Predict("p1", asOf, 14, s)
		p28, _ := p.Predict("p1", asOf, 28, s)

		Convey("Then risk grows with the horizon", func() {
			So(p14.RiskScore, ShouldBeGreaterThan, p7.RiskScore)
			So(p28.RiskScore, ShouldBeGreaterThan, p14.RiskScore)
			So(p28.RiskScore, ShouldBeLessThanOrEqualTo, 1)
		})

		Convey("Then the 14 day score compounds the weekly probability", func() {
			want := 1 - (1-p7.RiskScore)*(1-p7.RiskScore)
			So(p14.RiskScore, ShouldAlmostEqual, want, 1e-12)
		})

		Convey("Then contributions always add up to the score", func() {
			for _, pred := range []types.RiskPrediction{p7, p14, p28} {
				So(sum(pred), ShouldAlmostEqual, pred.RiskScore, 1e-12)
			}
		})

		Convey("Then the 7 day contributions match the model", func() {
			byName := map[string]float64{}
			for _, c := range p7.FeatureContributions {
				byName[c.Feature] = c.Contribution
			}
			So(byName["acwr"], ShouldAlmostEqual, 0.175, 1e-12)
			So(byName["monotony"], ShouldAlmostEqual, 0.075, 1e-12)
			So(p7.RiskScore, ShouldAlmostEqual, 0.3, 1e-12)
			So(p7.RiskClass, ShouldEqual, risk.ClassMedium)
			So(p7.Confidence, ShouldEqual, risk.ConfidenceHigh)
		})
	})

	Convey("Given under-loading", t, func() {
		pred, _ := p.Predict("p1", asOf, 7, risk.Snapshot{ACWR: f(0.4)})
		So(pred.FeatureContributions[0].Feature, ShouldEqual, "acwr")
		So(pred.FeatureContributions[0].Contribution, ShouldAlmostEqual, 0.35*0.25, 1e-12)
	})

	Convey("Given an improving readiness trend", t, func() {
		pred, _ := p.Predict("p1", asOf, 7, risk.Snapshot{ReadinessTrend: f(3)})
		So(pred.RiskScore, ShouldAlmostEqual, 0.05, 1e-12)
	})

	Convey("Given identical inputs twice", t, func() {
		s := risk.Snapshot{ACWR: f(1.42), Monotony: f(1.9), Strain: f(4100), ReadinessTrend: f(-1.3), SampleSize: 22, Window: 28}
		a, _ := p.Predict("p1", asOf, 14, s)
		b, _ := p.Predict("p1", asOf, 14, s)
		So(a, ShouldResemble, b)
	})

	Convey("Given an unsupported horizon", t, func() {
		_, err := p.Predict("p1", asOf, 10, risk.Snapshot{})
		So(errors.Is(err, model.ErrInvalidHorizon), ShouldBeTrue)
	})
}

func TestClassify(t *testing.T) {
	Convey("Class boundaries are lower-inclusive", t, func() {
		So(risk.Classify(0), ShouldEqual, risk.ClassLow)
		So(risk.Classify(0.2499), ShouldEqual, risk.ClassLow)
		So(risk.Classify(0.25), ShouldEqual, risk.ClassMedium)
		So(risk.Classify(0.5), ShouldEqual, risk.ClassHigh)
		So(risk.Classify(0.75), ShouldEqual, risk.ClassVeryHigh)
		So(risk.Classify(1), ShouldEqual, risk.ClassVeryHigh)
	})

	Convey("Confidence follows coverage of the chronic window", t, func() {
		m := risk.Baseline()
		So(m.Confidence(13, 28), ShouldEqual, risk.ConfidenceLow)
		So(m.Confidence(14, 28), ShouldEqual, risk.ConfidenceMedium)
		So(m.Confidence(20, 28), ShouldEqual, risk.ConfidenceMedium)
		So(m.Confidence(21, 28), ShouldEqual, risk.ConfidenceHigh)
		So(m.Confidence(28, 28), ShouldEqual, risk.ConfidenceHigh)

		Convey("Then every label is reachable for other window lengths", func() {
			So(m.Confidence(3, 7), ShouldEqual, risk.ConfidenceLow)
			So(m.Confidence(4, 7), ShouldEqual, risk.ConfidenceMedium)
			So(m.Confidence(42, 42), ShouldEqual, risk.ConfidenceHigh)
		})

		Convey("Then an empty window is low confidence", func() {
			So(m.Confidence(0, 0), ShouldEqual, risk.ConfidenceLow)
		})
	})
}

func TestModelValidate(t *testing.T) {
	Convey("The baseline model is valid", t, func() {
		So(risk.Baseline().Validate(), ShouldBeNil)
	})

	Convey("Inverted coverage thresholds are rejected", t, func() {
		m := risk.Baseline()
		m.MinCoverage, m.HighCoverage = 0.8, 0.6
		So(errors.Is(m.Validate(), risk.ErrInvalidModel), ShouldBeTrue)
	})

	Convey("Weights that can push the score past 1 are rejected", t, func() {
		m := risk.Baseline()
		m.Intercept = 0.2
		So(errors.Is(m.Validate(), risk.ErrInvalidModel), ShouldBeTrue)
	})
}

func TestSnapshotFrom(t *testing.T) {
	Convey("Given a declining readiness series with a gap", t, func() {
		rd := []types.ReadinessPoint{
			{Score: types.Float(80)}, {Score: types.Float(78)}, {}, {Score: types.Float(74)},
		}
		w := types.WorkloadPoint{ACWR: types.Float(1.2), ChronicDaysWithData: 12}
		s := risk.SnapshotFrom(w, rd, 28)

		Convey("Then the trend is the fitted slope", func() {
			So(s.ReadinessTrend, ShouldNotBeNil)
			So(*s.ReadinessTrend, ShouldAlmostEqual, -2, 1e-9)
			So(*s.ACWR, ShouldEqual, 1.2)
			So(s.Monotony, ShouldBeNil)
			So(s.SampleSize, ShouldEqual, 12)
			So(s.Window, ShouldEqual, 28)
		})
	})

	Convey("Given a single readiness score", t, func() {
		s := risk.SnapshotFrom(types.WorkloadPoint{}, []types.ReadinessPoint{{Score: types.Float(70)}}, 28)
		So(s.ReadinessTrend, ShouldBeNil)
	})
}

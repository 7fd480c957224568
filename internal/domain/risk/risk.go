// Package risk classifies short-horizon injury risk with a fixed additive
// baseline model and explains each prediction per feature.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/stats"
	"github.com/okian/readiness/internal/domain/types"
)

// ModelVersion identifies the baseline coefficients.
const ModelVersion = "baseline-v1"

// Feature names.
const (
	FeatureACWR           = "acwr"
	FeatureMonotony       = "monotony"
	FeatureStrain         = "strain"
	FeatureReadinessTrend = "readiness_trend"
)

// Risk classes.
const (
	ClassLow      = "Low"
	ClassMedium   = "Medium"
	ClassHigh     = "High"
	ClassVeryHigh = "Very High"
)

// Confidence labels.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// ErrInvalidModel reports coefficients that cannot produce a bounded score.
var ErrInvalidModel = errors.New("invalid risk model")

// Horizons lists the supported prediction horizons in days.
var Horizons = []int{7, 14, 28}

// ValidateHorizon rejects unsupported horizons.
func ValidateHorizon(h int) error {
	for _, ok := range Horizons {
		if h == ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %d (want 7, 14 or 28)", model.ErrInvalidHorizon, h)
}

// Snapshot is the feature vector at the as-of date. Nil features are missing.
type Snapshot struct {
	ACWR     *float64
	Monotony *float64
	Strain   *float64
	// ReadinessTrend is the readiness slope in points per day.
	ReadinessTrend *float64
	// SampleSize is the number of days with recorded sessions behind the features.
	SampleSize int
	// Window is the chronic window length SampleSize was counted over.
	Window int
}

// Model holds the baseline coefficients.
type Model struct {
	Intercept       float64
	Weights         map[string]float64
	ACWRBandLow     float64
	ACWRBandHigh    float64
	ACWRCeiling     float64
	MonotonyCeiling float64
	StrainCeiling   float64
	// TrendFloor is the readiness slope (points/day) treated as maximal risk.
	TrendFloor float64
	// MinCoverage and HighCoverage are the shares of the chronic window
	// with sessions needed for medium and high confidence.
	MinCoverage  float64
	HighCoverage float64
}

// Baseline returns the default coefficients. The 7-day probability is
// bounded by the intercept plus the weight total, which stays below 1.
func Baseline() Model {
	return Model{
		Intercept: 0.05,
		Weights: map[string]float64{
			FeatureACWR:           0.35,
			FeatureMonotony:       0.15,
			FeatureStrain:         0.15,
			FeatureReadinessTrend: 0.20,
		},
		ACWRBandLow:     0.8,
		ACWRBandHigh:    1.3,
		ACWRCeiling:     2.0,
		MonotonyCeiling: 2.5,
		StrainCeiling:   6000,
		TrendFloor:      -5,
		MinCoverage:     0.5,
		HighCoverage:    0.75,
	}
}

// Validate rejects coefficients that cannot produce a bounded score.
func (m Model) Validate() error {
	switch {
	case m.MinCoverage < 0 || m.MinCoverage > m.HighCoverage || m.HighCoverage > 1:
		return fmt.Errorf("%w: coverage thresholds need 0 <= min (%g) <= high (%g) <= 1", ErrInvalidModel, m.MinCoverage, m.HighCoverage)
	case m.ACWRBandLow <= 0 || m.ACWRBandLow >= m.ACWRBandHigh || m.ACWRBandHigh >= m.ACWRCeiling:
		return fmt.Errorf("%w: acwr band needs 0 < low < high < ceiling", ErrInvalidModel)
	case m.MonotonyCeiling <= 1 || m.StrainCeiling <= 0 || m.TrendFloor >= 0:
		return fmt.Errorf("%w: ceilings must be above their neutral values", ErrInvalidModel)
	}
	total := m.Intercept
	for name, w := range m.Weights {
		if w < 0 {
			return fmt.Errorf("%w: negative weight for %s", ErrInvalidModel, name)
		}
		total += w
	}
	if m.Intercept < 0 || total > 1 {
		return fmt.Errorf("%w: intercept plus weights must stay within [0,1], got %g", ErrInvalidModel, total)
	}
	return nil
}

// Predictor applies a model.
type Predictor struct {
	model Model
}

// NewPredictor returns a predictor for m.
func NewPredictor(m Model) *Predictor {
	return &Predictor{model: m}
}

// Model returns the coefficients in use.
func (p *Predictor) Model() Model {
	return p.model
}

// Predict classifies risk for one player at asOf over horizon days.
func (p *Predictor) Predict(playerID string, asOf time.Time, horizon int, s Snapshot) (types.RiskPrediction, error) {
	if err := ValidateHorizon(horizon); err != nil {
		return types.RiskPrediction{}, err
	}
	m := p.model

	features := []struct {
		name  string
		value *float64
		norm  func(float64) float64
	}{
		{FeatureACWR, s.ACWR, p.acwr},
		{FeatureMonotony, s.Monotony, func(v float64) float64 { return stats.Clamp((v-1)/(m.MonotonyCeiling-1), 0, 1) }},
		{FeatureStrain, s.Strain, func(v float64) float64 { return stats.Clamp(v/m.StrainCeiling, 0, 1) }},
		{FeatureReadinessTrend, s.ReadinessTrend, func(v float64) float64 { return stats.Clamp(v/m.TrendFloor, 0, 1) }},
	}

	contribs := make([]types.FeatureContribution, 0, len(features))
	parts := []float64{m.Intercept}
	for _, f := range features {
		c := types.FeatureContribution{Feature: f.name, Weight: m.Weights[f.name]}
		if f.value == nil {
			c.Missing = true
		} else {
			c.Value = types.Float(*f.value)
			c.Normalized = f.norm(*f.value)
			c.Contribution = c.Normalized * c.Weight
		}
		contribs = append(contribs, c)
		parts = append(parts, c.Contribution)
	}

	p7 := stats.Clamp(stats.Sum(parts), 0, 1)
	scale := 1.0
	if p7 > 0 && horizon != 7 {
		ph := 1 - math.Pow(1-p7, float64(horizon)/7)
		scale = ph / p7
	}
	intercept := m.Intercept * scale
	parts = parts[:0]
	parts = append(parts, intercept)
	for i := range contribs {
		contribs[i].Contribution *= scale
		parts = append(parts, contribs[i].Contribution)
	}
	score := stats.Clamp(stats.Sum(parts), 0, 1)

	sort.SliceStable(contribs, func(i, j int) bool {
		if contribs[i].Contribution != contribs[j].Contribution {
			return contribs[i].Contribution > contribs[j].Contribution
		}
		return contribs[i].Feature < contribs[j].Feature
	})

	conf := m.Confidence(s.SampleSize, s.Window)
	return types.RiskPrediction{
		PlayerID:             playerID,
		AsOfDate:             model.FormatDate(asOf),
		HorizonDays:          horizon,
		RiskScore:            score,
		RiskClass:            Classify(score),
		Intercept:            intercept,
		FeatureContributions: contribs,
		ModelVersion:         ModelVersion,
		SampleSize:           s.SampleSize,
		Confidence:           conf,
		LowConfidence:        conf == ConfidenceLow,
	}, nil
}

// acwr scores distance outside the sweet spot; under-loading counts half.
func (p *Predictor) acwr(v float64) float64 {
	m := p.model
	switch {
	case v > m.ACWRBandHigh:
		return stats.Clamp((v-m.ACWRBandHigh)/(m.ACWRCeiling-m.ACWRBandHigh), 0, 1)
	case v < m.ACWRBandLow:
		return stats.Clamp((m.ACWRBandLow-v)/m.ACWRBandLow*0.5, 0, 1)
	}
	return 0
}

// Classify maps a score onto the four ordinal classes.
func Classify(score float64) string {
	switch {
	case score < 0.25:
		return ClassLow
	case score < 0.5:
		return ClassMedium
	case score < 0.75:
		return ClassHigh
	default:
		return ClassVeryHigh
	}
}

// Confidence labels a prediction by the share of the chronic window that
// had sessions.
func (m Model) Confidence(sampleSize, window int) string {
	if window <= 0 {
		return ConfidenceLow
	}
	coverage := float64(sampleSize) / float64(window)
	switch {
	case coverage < m.MinCoverage:
		return ConfidenceLow
	case coverage < m.HighCoverage:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// Package readiness combines wellness, autonomic and workload inputs into a
// bounded composite readiness score.
package readiness

import (
	"fmt"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/registry"
	"github.com/okian/readiness/internal/domain/stats"
	"github.com/okian/readiness/internal/domain/types"
)

// Weights are the relative importance of each sub-score. They need not sum
// to one; the composite renormalizes over the sub-scores that are present.
type Weights struct {
	Sleep     float64 `koanf:"sleep" yaml:"sleep"`
	Autonomic float64 `koanf:"autonomic" yaml:"autonomic"`
	Recovery  float64 `koanf:"recovery" yaml:"recovery"`
	Wellness  float64 `koanf:"wellness" yaml:"wellness"`
	Workload  float64 `koanf:"workload" yaml:"workload"`
}

// DefaultWeights returns the 25/25/20/15/15 split.
func DefaultWeights() Weights {
	return Weights{Sleep: 0.25, Autonomic: 0.25, Recovery: 0.20, Wellness: 0.15, Workload: 0.15}
}

// Validate requires non-negative weights with a positive total.
func (w Weights) Validate() error {
	all := []float64{w.Sleep, w.Autonomic, w.Recovery, w.Wellness, w.Workload}
	var total float64
	for _, v := range all {
		if v < 0 {
			return fmt.Errorf("%w: negative weight %g", ErrInvalidWeights, v)
		}
		total += v
	}
	if total <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	return nil
}

// Config tunes the sub-score transforms.
type Config struct {
	Weights Weights
	// SleepOptimalHours maps to a sleep sub-score of 100.
	SleepOptimalHours float64
	// BaselineDays is the trailing window for the HRV baseline.
	BaselineDays int
	// MinBaselineSamples is the number of HRV readings needed before the
	// baseline is trusted over absolute bounds.
	MinBaselineSamples int
	// ACWR band scored 100; the score falls linearly to 0 at 0 and at ACWRCeiling.
	ACWRBandLow  float64
	ACWRBandHigh float64
	ACWRCeiling  float64
}

// DefaultConfig returns the standard scorer configuration.
func DefaultConfig() Config {
	return Config{
		Weights:            DefaultWeights(),
		SleepOptimalHours:  8,
		BaselineDays:       28,
		MinBaselineSamples: 7,
		ACWRBandLow:        0.8,
		ACWRBandHigh:       1.3,
		ACWRCeiling:        2.0,
	}
}

// Inputs are the same-day observations for one player. Nil means absent.
type Inputs struct {
	Date         time.Time
	SleepHours   *float64
	SleepQuality *float64
	HRV          *float64
	HRVBaseline  *float64
	RestingHR    *float64
	Fatigue      *float64
	Soreness     *float64
	Stress       *float64
	Mood         *float64
	ACWR         *float64
}

// Scorer computes readiness points.
type Scorer struct {
	cfg      Config
	registry *registry.Registry
}

// NewScorer validates cfg and returns a scorer.
func NewScorer(cfg Config, reg *registry.Registry) (*Scorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.SleepOptimalHours <= 0 {
		return nil, fmt.Errorf("%w: sleep optimum must be positive", ErrInvalidConfig)
	}
	if cfg.ACWRBandLow <= 0 || cfg.ACWRBandLow > cfg.ACWRBandHigh || cfg.ACWRBandHigh >= cfg.ACWRCeiling {
		return nil, fmt.Errorf("%w: acwr band must satisfy 0 < low <= high < ceiling", ErrInvalidConfig)
	}
	if reg == nil {
		reg = registry.Default()
	}
	return &Scorer{cfg: cfg, registry: reg}, nil
}

// Config returns the scorer configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score computes one readiness point.
func (s *Scorer) Score(in Inputs) types.ReadinessPoint {
	c := types.ReadinessComponents{
		Sleep:     s.sleep(in),
		Autonomic: s.autonomic(in),
		Recovery:  s.meanOf(model.FamilyWellness, map[string]*float64{registry.KeyFatigue: in.Fatigue, registry.KeySoreness: in.Soreness}),
		Wellness:  s.meanOf(model.FamilyWellness, map[string]*float64{registry.KeyStress: in.Stress, registry.KeyMood: in.Mood}),
		Workload:  s.workload(in.ACWR),
	}
	p := types.ReadinessPoint{Date: model.FormatDate(in.Date), Components: c}

	w := s.cfg.Weights
	parts := []struct {
		score  *float64
		weight float64
	}{
		{c.Sleep, w.Sleep},
		{c.Autonomic, w.Autonomic},
		{c.Recovery, w.Recovery},
		{c.Wellness, w.Wellness},
		{c.Workload, w.Workload},
	}
	var num, den []float64
	for _, part := range parts {
		if part.score == nil || part.weight == 0 {
			continue
		}
		num = append(num, *part.score*part.weight)
		den = append(den, part.weight)
	}
	if len(den) == 0 {
		p.Reason = types.ReasonNoInputs
		return p
	}
	p.Score = types.Float(stats.Clamp(stats.Sum(num)/stats.Sum(den), 0, 100))
	return p
}

func (s *Scorer) sleep(in Inputs) *float64 {
	if in.SleepHours != nil {
		return types.Float(stats.Clamp(*in.SleepHours/s.cfg.SleepOptimalHours*100, 0, 100))
	}
	return s.normalize(model.FamilyWellness, registry.KeySleepQuality, in.SleepQuality)
}

func (s *Scorer) autonomic(in Inputs) *float64 {
	if in.HRV != nil {
		if in.HRVBaseline != nil && *in.HRVBaseline > 0 {
			ratio := *in.HRV / *in.HRVBaseline
			return types.Float(stats.Clamp((ratio-0.5)/0.5*100, 0, 100))
		}
		return s.normalize(model.FamilyAutonomic, registry.KeyHRV, in.HRV)
	}
	return s.normalize(model.FamilyAutonomic, registry.KeyRestingHR, in.RestingHR)
}

func (s *Scorer) workload(acwr *float64) *float64 {
	if acwr == nil {
		return nil
	}
	a := *acwr
	switch {
	case a >= s.cfg.ACWRBandLow && a <= s.cfg.ACWRBandHigh:
		return types.Float(100)
	case a < s.cfg.ACWRBandLow:
		return types.Float(stats.Clamp(a/s.cfg.ACWRBandLow*100, 0, 100))
	default:
		return types.Float(stats.Clamp((s.cfg.ACWRCeiling-a)/(s.cfg.ACWRCeiling-s.cfg.ACWRBandHigh)*100, 0, 100))
	}
}

func (s *Scorer) normalize(family, key string, v *float64) *float64 {
	if v == nil {
		return nil
	}
	e, ok := s.registry.Lookup(family, key)
	if !ok {
		return nil
	}
	score, ok := e.Normalize(*v)
	if !ok {
		return nil
	}
	return types.Float(score)
}

// meanOf averages the normalized scores of the present inputs. Keys are
// visited in a fixed order so the sum is reproducible.
func (s *Scorer) meanOf(family string, inputs map[string]*float64) *float64 {
	keys := []string{registry.KeyFatigue, registry.KeySoreness, registry.KeyStress, registry.KeyMood}
	var scores []float64
	for _, k := range keys {
		v, ok := inputs[k]
		if !ok {
			continue
		}
		if n := s.normalize(family, k, v); n != nil {
			scores = append(scores, *n)
		}
	}
	m, ok := stats.Mean(scores)
	if !ok {
		return nil
	}
	return types.Float(m)
}

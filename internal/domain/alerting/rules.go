// Package alerting evaluates an ordered list of declarative threshold rules
// against per-day observations.
package alerting

import (
	"fmt"

	"github.com/okian/readiness/internal/domain/types"
)

// Observation metric names.
const (
	MetricACWR          = "acwr"
	MetricMonotony      = "monotony"
	MetricStrain        = "strain"
	MetricReadiness     = "readiness_score"
	MetricReadinessDrop = "readiness_drop_pct"
	MetricMissingDays   = "missing_days"
)

// Alert types emitted by the default rules.
const (
	TypeHighLoad     = "high_load"
	TypeUnderLoad    = "under_load"
	TypeHighMonotony = "high_monotony"
	TypeFatigue      = "fatigue"
	TypeDataGap      = "data_gap"
)

// Comparator decides whether an observed value breaches a threshold.
type Comparator string

const (
	GT  Comparator = "gt"
	GTE Comparator = "gte"
	LT  Comparator = "lt"
	LTE Comparator = "lte"
)

// Breached applies the comparator.
func (c Comparator) Breached(observed, threshold float64) bool {
	switch c {
	case GT:
		return observed > threshold
	case GTE:
		return observed >= threshold
	case LT:
		return observed < threshold
	case LTE:
		return observed <= threshold
	}
	return false
}

// Valid reports whether c is known.
func (c Comparator) Valid() bool {
	switch c {
	case GT, GTE, LT, LTE:
		return true
	}
	return false
}

// Rule is one declarative threshold check.
type Rule struct {
	Type       string         `koanf:"type" yaml:"type"`
	Metric     string         `koanf:"metric" yaml:"metric"`
	Comparator Comparator     `koanf:"comparator" yaml:"comparator"`
	Threshold  float64        `koanf:"threshold" yaml:"threshold"`
	Severity   types.Severity `koanf:"severity" yaml:"severity"`
	// RequiresConfidence skips the rule on days whose workload history is
	// below the confidence threshold.
	RequiresConfidence bool `koanf:"requires_confidence" yaml:"requires_confidence"`
}

// Validate checks a rule.
func (r Rule) Validate() error {
	switch {
	case r.Type == "":
		return fmt.Errorf("%w: empty type", ErrInvalidRule)
	case r.Metric == "":
		return fmt.Errorf("%w: %s: empty metric", ErrInvalidRule, r.Type)
	case !r.Comparator.Valid():
		return fmt.Errorf("%w: %s: comparator %q", ErrInvalidRule, r.Type, r.Comparator)
	}
	switch r.Severity {
	case types.SeverityInfo, types.SeverityWarning, types.SeverityCritical:
	default:
		return fmt.Errorf("%w: %s: severity %q", ErrInvalidRule, r.Type, r.Severity)
	}
	return nil
}

// DefaultDataGapDays is the gap length tolerated before a data_gap alert.
const DefaultDataGapDays = 3

// DefaultRules returns the built-in ordered rule list.
func DefaultRules(dataGapDays int) []Rule {
	return []Rule{
		{Type: TypeHighLoad, Metric: MetricACWR, Comparator: GT, Threshold: 1.5, Severity: types.SeverityWarning},
		{Type: TypeUnderLoad, Metric: MetricACWR, Comparator: LT, Threshold: 0.8, Severity: types.SeverityInfo, RequiresConfidence: true},
		{Type: TypeHighMonotony, Metric: MetricMonotony, Comparator: GT, Threshold: 2.0, Severity: types.SeverityWarning},
		{Type: TypeFatigue, Metric: MetricReadinessDrop, Comparator: GT, Threshold: 20, Severity: types.SeverityWarning},
		{Type: TypeDataGap, Metric: MetricMissingDays, Comparator: GT, Threshold: float64(dataGapDays), Severity: types.SeverityInfo},
	}
}

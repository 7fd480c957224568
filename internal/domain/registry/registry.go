// Package registry maps (family, key) pairs to their aggregation policy and
// normalization bounds.
package registry

import (
	"fmt"
	"sort"

	"github.com/okian/readiness/internal/domain/model"
)

// Policy controls how values inside one bucket collapse to a single value.
type Policy string

const (
	PolicyMean Policy = "mean"
	PolicySum  Policy = "sum"
	PolicyLast Policy = "last"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyMean, PolicySum, PolicyLast:
		return true
	}
	return false
}

// Entry describes one registered metric.
type Entry struct {
	Family string  `koanf:"family" yaml:"family"`
	Key    string  `koanf:"key" yaml:"key"`
	Policy Policy  `koanf:"policy" yaml:"policy"`
	Unit   string  `koanf:"unit" yaml:"unit"`
	Low    float64 `koanf:"low" yaml:"low"`
	High   float64 `koanf:"high" yaml:"high"`
	// Invert marks metrics where a higher raw value is worse (fatigue, soreness).
	Invert bool `koanf:"invert" yaml:"invert"`
}

// MetricKey returns "family.key".
func (e Entry) MetricKey() string {
	return model.MetricKey(e.Family, e.Key)
}

// HasBounds reports whether the entry can be normalized.
func (e Entry) HasBounds() bool {
	return e.High > e.Low
}

// Normalize maps v onto [0,100] using the entry bounds, inverted if needed.
// ok is false when the entry has no bounds.
func (e Entry) Normalize(v float64) (score float64, ok bool) {
	if !e.HasBounds() {
		return 0, false
	}
	s := (v - e.Low) / (e.High - e.Low) * 100
	if e.Invert {
		s = 100 - s
	}
	return clamp(s, 0, 100), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Registry is an immutable lookup of metric entries.
type Registry struct {
	entries map[string]Entry
}

// New validates entries and builds a registry. Later duplicates override
// earlier ones so configuration can amend the defaults.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for i, e := range entries {
		if err := validate(e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		r.entries[e.MetricKey()] = e
	}
	return r, nil
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := New(Defaults()...)
	if err != nil {
		panic(err)
	}
	return r
}

func validate(e Entry) error {
	switch {
	case !model.IsFamily(e.Family):
		return fmt.Errorf("%w: family %q", ErrInvalidEntry, e.Family)
	case e.Key == "":
		return fmt.Errorf("%w: empty key", ErrInvalidEntry)
	case !e.Policy.Valid():
		return fmt.Errorf("%w: policy %q", ErrInvalidEntry, e.Policy)
	case (e.Low != 0 || e.High != 0) && e.Low >= e.High:
		return fmt.Errorf("%w: low %g must be below high %g", ErrInvalidEntry, e.Low, e.High)
	}
	return nil
}

// Lookup returns the entry for family/key.
func (r *Registry) Lookup(family, key string) (Entry, bool) {
	e, ok := r.entries[model.MetricKey(family, key)]
	return e, ok
}

// PolicyFor returns the aggregation policy for a "family.key" metric,
// falling back to mean for unregistered metrics.
func (r *Registry) PolicyFor(metric string) Policy {
	if e, ok := r.entries[metric]; ok {
		return e.Policy
	}
	return PolicyMean
}

// Keys lists registered metric keys in sorted order.
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered metrics.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Defaults lists the built-in entries.
func Defaults() []Entry {
	return []Entry{
		{Family: model.FamilyWellness, Key: KeySleepHours, Policy: PolicyMean, Unit: "h", Low: 0, High: 8},
		{Family: model.FamilyWellness, Key: KeySleepQuality, Policy: PolicyMean, Unit: "score", Low: 1, High: 10},
		{Family: model.FamilyWellness, Key: KeyFatigue, Policy: PolicyMean, Unit: "score", Low: 1, High: 10, Invert: true},
		{Family: model.FamilyWellness, Key: KeySoreness, Policy: PolicyMean, Unit: "score", Low: 1, High: 10, Invert: true},
		{Family: model.FamilyWellness, Key: KeyStress, Policy: PolicyMean, Unit: "score", Low: 1, High: 10, Invert: true},
		{Family: model.FamilyWellness, Key: KeyMood, Policy: PolicyMean, Unit: "score", Low: 1, High: 10},
		{Family: model.FamilyAutonomic, Key: KeyHRV, Policy: PolicyMean, Unit: "ms", Low: 20, High: 100},
		{Family: model.FamilyAutonomic, Key: KeyRestingHR, Policy: PolicyMean, Unit: "bpm", Low: 40, High: 80, Invert: true},
		{Family: model.FamilyBody, Key: "weight_kg", Policy: PolicyLast, Unit: "kg"},
		{Family: model.FamilyBody, Key: "body_fat_pct", Policy: PolicyLast, Unit: "%"},
		{Family: model.FamilyTraining, Key: "distance_km", Policy: PolicySum, Unit: "km"},
		{Family: model.FamilyTraining, Key: "high_speed_running_m", Policy: PolicySum, Unit: "m"},
		{Family: model.FamilyTraining, Key: "sprints", Policy: PolicySum, Unit: "count"},
		{Family: model.FamilyMatch, Key: "minutes_played", Policy: PolicySum, Unit: "min"},
		{Family: model.FamilyMatch, Key: "goals", Policy: PolicySum, Unit: "count"},
		{Family: model.FamilyMatch, Key: "assists", Policy: PolicySum, Unit: "count"},
	}
}

// Keys consumed by the readiness scorer.
const (
	KeySleepHours   = "sleep_hours"
	KeySleepQuality = "sleep_quality"
	KeyFatigue      = "fatigue"
	KeySoreness     = "soreness"
	KeyStress       = "stress"
	KeyMood         = "mood"
	KeyHRV          = "hrv_rmssd"
	KeyRestingHR    = "resting_hr"
)

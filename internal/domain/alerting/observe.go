package alerting

import (
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/stats"
	"github.com/okian/readiness/internal/domain/types"
)

// ObserveOptions tunes how derived series turn into observations.
type ObserveOptions struct {
	// TrailingDays is the readiness window the drop is measured against.
	TrailingDays int
	// MinPriorScores is the number of scored days needed in that window.
	MinPriorScores int
	// Lookback is how far before the range data gaps and readiness history
	// are considered.
	Lookback int
}

// DefaultObserveOptions returns the standard settings.
func DefaultObserveOptions() ObserveOptions {
	return ObserveOptions{TrailingDays: 7, MinPriorScores: 3, Lookback: 28}
}

// History is the derived input to alert evaluation. Workload and
// readiness are keyed by YYYY-MM-DD and should cover the lookback too.
type History struct {
	Workload  map[string]types.WorkloadPoint
	Readiness map[string]types.ReadinessPoint
	// DataDays marks days with any monitoring record.
	DataDays map[string]bool
}

// Observe builds one observation per day in [from, to].
func Observe(from, to time.Time, h History, opts ObserveOptions) []Observation {
	var out []Observation
	start := model.Day(from).AddDate(0, 0, -opts.Lookback)
	for d := model.Day(from); !d.After(model.Day(to)); d = d.AddDate(0, 0, 1) {
		key := model.FormatDate(d)
		obs := Observation{Date: d, Values: make(map[string]float64)}

		if w, ok := h.Workload[key]; ok {
			obs.Confident = !w.LowConfidence
			if w.ACWR != nil {
				obs.Values[MetricACWR] = *w.ACWR
			}
			if w.Monotony != nil {
				obs.Values[MetricMonotony] = *w.Monotony
			}
			if w.Strain != nil {
				obs.Values[MetricStrain] = *w.Strain
			}
		}

		if r, ok := h.Readiness[key]; ok && r.Score != nil {
			obs.Values[MetricReadiness] = *r.Score
			if drop, ok := readinessDrop(d, *r.Score, h.Readiness, opts); ok {
				obs.Values[MetricReadinessDrop] = drop
			}
		}

		if gap, ok := gapEndingAt(d, to, start, h.DataDays); ok {
			obs.Values[MetricMissingDays] = float64(gap)
		}
		out = append(out, obs)
	}
	return out
}

// readinessDrop is the percentage fall of today's score below the mean of
// the trailing window.
func readinessDrop(d time.Time, today float64, rd map[string]types.ReadinessPoint, opts ObserveOptions) (float64, bool) {
	var prior []float64
	for back := opts.TrailingDays; back >= 1; back-- {
		p, ok := rd[model.FormatDate(d.AddDate(0, 0, -back))]
		if ok && p.Score != nil {
			prior = append(prior, *p.Score)
		}
	}
	if len(prior) < opts.MinPriorScores {
		return 0, false
	}
	mean, _ := stats.Mean(prior)
	if mean <= 0 {
		return 0, false
	}
	return (mean - today) / mean * 100, true
}

// gapEndingAt reports the length of a run of days without data that ends
// on d. A run is reported once, on its last day or on the range end.
func gapEndingAt(d, to, start time.Time, dataDays map[string]bool) (int, bool) {
	if dataDays[model.FormatDate(d)] {
		return 0, false
	}
	next := d.AddDate(0, 0, 1)
	if !d.Equal(model.Day(to)) && !dataDays[model.FormatDate(next)] {
		return 0, false
	}
	n := 0
	for day := d; !day.Before(start) && !dataDays[model.FormatDate(day)]; day = day.AddDate(0, 0, -1) {
		n++
	}
	return n, true
}

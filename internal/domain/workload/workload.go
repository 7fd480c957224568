// Package workload derives rolling session-RPE load metrics: acute and
// chronic load, the acute:chronic workload ratio (ACWR), monotony and strain.
package workload

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/stats"
	"github.com/okian/readiness/internal/domain/types"
)

// MonotonyWindow is the trailing week used for monotony and strain.
const MonotonyWindow = 7

// flatTolerance is the stdev, relative to the mean, below which a week
// counts as constant. Summation leaves residues around 1e-13.
const flatTolerance = 1e-9

// Method selects how acute and chronic loads are averaged.
type Method string

const (
	// MethodRolling averages a zero-filled trailing window.
	MethodRolling Method = "rolling"
	// MethodEWMA uses exponentially weighted averages with lambda = 2/(N+1).
	MethodEWMA Method = "ewma"
)

// Options configures a workload computation.
type Options struct {
	AcuteWindow   int
	ChronicWindow int
	// MinChronicFraction is the share of chronic-window days that need a
	// recorded session before a point is considered confident.
	MinChronicFraction float64
	// Days is the number of points returned; zero means ChronicWindow.
	Days   int
	Method Method
}

// DefaultOptions returns the 7/28 rolling configuration.
func DefaultOptions() Options {
	return Options{
		AcuteWindow:        7,
		ChronicWindow:      28,
		MinChronicFraction: 0.5,
		Method:             MethodRolling,
	}
}

// Validate rejects impossible window settings.
func (o Options) Validate() error {
	switch {
	case o.AcuteWindow <= 0 || o.ChronicWindow <= 0:
		return fmt.Errorf("%w: windows must be positive (acute=%d chronic=%d)", model.ErrInvalidWindow, o.AcuteWindow, o.ChronicWindow)
	case o.AcuteWindow > o.ChronicWindow:
		return fmt.Errorf("%w: acute window %d exceeds chronic window %d", model.ErrInvalidWindow, o.AcuteWindow, o.ChronicWindow)
	case o.Days < 0:
		return fmt.Errorf("%w: days must not be negative", model.ErrInvalidWindow)
	case o.MinChronicFraction < 0 || o.MinChronicFraction > 1:
		return fmt.Errorf("%w: min chronic fraction %g outside [0,1]", model.ErrInvalidWindow, o.MinChronicFraction)
	case o.Method != "" && o.Method != MethodRolling && o.Method != MethodEWMA:
		return fmt.Errorf("%w: unknown method %q", model.ErrInvalidWindow, o.Method)
	}
	return nil
}

func (o Options) days() int {
	if o.Days > 0 {
		return o.Days
	}
	return o.ChronicWindow
}

func (o Options) lookback() int {
	if o.ChronicWindow > MonotonyWindow {
		return o.ChronicWindow
	}
	return MonotonyWindow
}

// Range returns the first and last day whose sessions feed a computation
// ending at to.
func (o Options) Range(to time.Time) (from, end time.Time) {
	end = model.Day(to)
	first := end.AddDate(0, 0, -(o.days() - 1))
	return first.AddDate(0, 0, -(o.lookback() - 1)), end
}

// MinDaysWithData is the confidence threshold in days.
func (o Options) MinDaysWithData() int {
	return int(math.Ceil(o.MinChronicFraction * float64(o.ChronicWindow)))
}

// DailyLoads sums session load per calendar day over [from, to], filling
// days without sessions with zero. present marks days with at least one session.
func DailyLoads(sessions []model.SessionRecord, from, to time.Time) (loads []float64, present []bool) {
	from, to = model.Day(from), model.Day(to)
	byDay := make(map[string][]float64)
	for _, s := range sessions {
		key := model.FormatDate(s.Date)
		byDay[key] = append(byDay[key], s.Load())
	}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		v, ok := byDay[model.FormatDate(d)]
		loads = append(loads, stats.Sum(v))
		present = append(present, ok)
	}
	return loads, present
}

// Compute returns one point per day ending at to.
func Compute(sessions []model.SessionRecord, to time.Time, opts Options) ([]types.WorkloadPoint, error) {
	if opts.Method == "" {
		opts.Method = MethodRolling
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	from, end := opts.Range(to)
	loads, present := DailyLoads(sessions, from, end)

	var acuteEWMA, chronicEWMA []float64
	if opts.Method == MethodEWMA {
		acuteEWMA = ewma(loads, opts.AcuteWindow)
		chronicEWMA = ewma(loads, opts.ChronicWindow)
	}

	n := opts.days()
	offset := len(loads) - n
	out := make([]types.WorkloadPoint, 0, n)
	for i := offset; i < len(loads); i++ {
		p := types.WorkloadPoint{
			Date:        model.FormatDate(from.AddDate(0, 0, i)),
			SessionLoad: loads[i],
		}
		if opts.Method == MethodEWMA {
			p.AcuteLoad = acuteEWMA[i]
			p.ChronicLoad = chronicEWMA[i]
		} else {
			p.AcuteLoad = windowMean(loads, i, opts.AcuteWindow)
			p.ChronicLoad = windowMean(loads, i, opts.ChronicWindow)
		}

		if p.ChronicLoad == 0 {
			p.ACWRReason = types.ReasonChronicLoadZero
		} else {
			p.ACWR = types.Float(p.AcuteLoad / p.ChronicLoad)
		}

		week := window(loads, i, MonotonyWindow)
		mean, _ := stats.Mean(week)
		sd, _ := stats.StdDev(week)
		if flat(week, mean, sd) {
			p.MonotonyReason = types.ReasonStdevZero
		} else {
			mono := mean / sd
			p.Monotony = types.Float(mono)
			p.Strain = types.Float(stats.Sum(week) * mono)
		}

		for _, ok := range windowBool(present, i, opts.ChronicWindow) {
			if ok {
				p.ChronicDaysWithData++
			}
		}
		p.LowConfidence = p.ChronicDaysWithData < opts.MinDaysWithData()
		out = append(out, p)
	}
	return out, nil
}

// Latest is a convenience returning the final point of Compute.
func Latest(sessions []model.SessionRecord, to time.Time, opts Options) (types.WorkloadPoint, error) {
	opts.Days = 1
	pts, err := Compute(sessions, to, opts)
	if err != nil {
		return types.WorkloadPoint{}, err
	}
	return pts[len(pts)-1], nil
}

// flat reports whether a week's loads have no spread. Identical loads that
// are not exact binary fractions still produce a tiny non-zero stdev.
func flat(week []float64, mean, sd float64) bool {
	if sd <= flatTolerance*math.Abs(mean) {
		return true
	}
	for _, x := range week[1:] {
		if x != week[0] {
			return false
		}
	}
	return true
}

func window(xs []float64, i, n int) []float64 {
	lo := i - n + 1
	if lo < 0 {
		lo = 0
	}
	return xs[lo : i+1]
}

func windowBool(xs []bool, i, n int) []bool {
	lo := i - n + 1
	if lo < 0 {
		lo = 0
	}
	return xs[lo : i+1]
}

// windowMean divides by n even near the start so missing days count as zero.
func windowMean(xs []float64, i, n int) float64 {
	return stats.Sum(window(xs, i, n)) / float64(n)
}

func ewma(xs []float64, n int) []float64 {
	decay := 2.0 / (float64(n) + 1.0)
	out := make([]float64, len(xs))
	var v float64
	for i, x := range xs {
		v = v + decay*(x-v)
		out[i] = v
	}
	return out
}

// Package series buckets raw metric records into calendar-aligned,
// gap-aware time series.
package series

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/registry"
	"github.com/okian/readiness/internal/domain/stats"
	"github.com/okian/readiness/internal/domain/types"
)

// Grouping is the bucket width.
type Grouping string

const (
	GroupDay   Grouping = "day"
	GroupWeek  Grouping = "week"
	GroupMonth Grouping = "month"
)

// ParseGrouping validates a grouping name. Empty means day.
func ParseGrouping(s string) (Grouping, error) {
	switch Grouping(s) {
	case "", GroupDay:
		return GroupDay, nil
	case GroupWeek:
		return GroupWeek, nil
	case GroupMonth:
		return GroupMonth, nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrInvalidGrouping, s)
}

// BucketStart returns the calendar boundary on or before d.
// Weeks start on Monday.
func (g Grouping) BucketStart(d time.Time) time.Time {
	d = model.Day(d)
	switch g {
	case GroupWeek:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case GroupMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

// Next returns the start of the bucket following start.
func (g Grouping) Next(start time.Time) time.Time {
	switch g {
	case GroupWeek:
		return start.AddDate(0, 0, 7)
	case GroupMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Request describes one series build.
type Request struct {
	PlayerID string
	From     time.Time
	To       time.Time
	Grouping Grouping
	// Metrics restricts the output columns to these "family.key" names.
	Metrics []string
}

// Builder aggregates records using a metric registry.
type Builder struct {
	registry *registry.Registry
}

// NewBuilder returns a builder that uses reg for aggregation policies.
func NewBuilder(reg *registry.Registry) *Builder {
	if reg == nil {
		reg = registry.Default()
	}
	return &Builder{registry: reg}
}

// Build produces a contiguous, ascending series. Buckets without records
// for a metric carry a nil value.
func (b *Builder) Build(req Request, records []model.MetricRecord) (types.BucketedSeries, error) {
	if err := model.ValidateRange(req.From, req.To); err != nil {
		return types.BucketedSeries{}, err
	}
	g, err := ParseGrouping(string(req.Grouping))
	if err != nil {
		return types.BucketedSeries{}, err
	}
	from, to := model.Day(req.From), model.Day(req.To)

	metrics := columns(req.Metrics, records)
	wanted := make(map[string]struct{}, len(metrics))
	for _, m := range metrics {
		wanted[m] = struct{}{}
	}

	// Records ordered by date so "last" is the latest observation.
	sorted := make([]model.MetricRecord, 0, len(records))
	for _, r := range records {
		d := model.Day(r.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		if _, ok := wanted[r.MetricKey()]; !ok {
			continue
		}
		sorted = append(sorted, r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return model.Day(sorted[i].Date).Before(model.Day(sorted[j].Date))
	})

	type cell struct{ values []float64 }
	grid := make(map[time.Time]map[string]*cell)
	for _, r := range sorted {
		start := g.BucketStart(r.Date)
		row := grid[start]
		if row == nil {
			row = make(map[string]*cell)
			grid[start] = row
		}
		c := row[r.MetricKey()]
		if c == nil {
			c = &cell{}
			row[r.MetricKey()] = c
		}
		c.values = append(c.values, r.Value)
	}

	out := types.BucketedSeries{
		PlayerID: req.PlayerID,
		From:     model.FormatDate(from),
		To:       model.FormatDate(to),
		Grouping: string(g),
		Metrics:  metrics,
		Buckets:  []types.Bucket{},
	}
	for start := g.BucketStart(from); !start.After(to); start = g.Next(start) {
		bucket := types.Bucket{
			Start:  model.FormatDate(start),
			End:    model.FormatDate(g.Next(start).AddDate(0, 0, -1)),
			Values: make(map[string]*float64, len(metrics)),
		}
		row := grid[start]
		for _, m := range metrics {
			var c *cell
			if row != nil {
				c = row[m]
			}
			if c == nil {
				bucket.Values[m] = nil
				continue
			}
			bucket.Values[m] = aggregate(b.registry.PolicyFor(m), c.values)
		}
		out.Buckets = append(out.Buckets, bucket)
	}
	return out, nil
}

func aggregate(p registry.Policy, values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	switch p {
	case registry.PolicySum:
		return types.Float(stats.Sum(values))
	case registry.PolicyLast:
		return types.Float(values[len(values)-1])
	default:
		m, _ := stats.Mean(values)
		return types.Float(m)
	}
}

func columns(filter []string, records []model.MetricRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(m string) {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if len(filter) > 0 {
		for _, m := range filter {
			if m != "" {
				add(m)
			}
		}
	} else {
		for _, r := range records {
			add(r.MetricKey())
		}
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}

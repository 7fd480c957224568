package alerting

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/types"
)

var alertNamespace = uuid.MustParse("6a1f3c52-8e0b-4f7d-9d6e-2b8f4e1c0a93")

// Observation is everything known about one player-day. A metric missing
// from Values is unknown and every rule on it is skipped.
type Observation struct {
	Date      time.Time
	Values    map[string]float64
	Confident bool
}

// Engine evaluates a fixed, ordered rule list. It holds no state between calls.
type Engine struct {
	rules []Rule
	order map[string]int
}

// NewEngine validates rules and returns an engine.
func NewEngine(rules []Rule) (*Engine, error) {
	e := &Engine{rules: make([]Rule, len(rules)), order: make(map[string]int, len(rules))}
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		e.rules[i] = r
		if _, ok := e.order[r.Type]; !ok {
			e.order[r.Type] = i
		}
	}
	return e, nil
}

// Rules returns a copy of the configured rules.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate applies every rule to one observation in rule order.
func (e *Engine) Evaluate(playerID string, obs Observation) []types.Alert {
	var out []types.Alert
	date := model.FormatDate(obs.Date)
	for _, r := range e.rules {
		v, ok := obs.Values[r.Metric]
		if !ok {
			continue
		}
		if r.RequiresConfidence && !obs.Confident {
			continue
		}
		if !r.Comparator.Breached(v, r.Threshold) {
			continue
		}
		out = append(out, types.Alert{
			ID:            AlertID(playerID, date, r.Type, r.Metric),
			PlayerID:      playerID,
			Date:          date,
			Type:          r.Type,
			Metric:        r.Metric,
			Comparator:    string(r.Comparator),
			ObservedValue: v,
			Threshold:     r.Threshold,
			Severity:      r.Severity,
		})
	}
	return out
}

// EvaluateAll evaluates many days and returns alerts ordered by date then
// rule order, with duplicates on (date, type, metric) collapsed.
func (e *Engine) EvaluateAll(playerID string, observations []Observation) []types.Alert {
	seen := make(map[string]struct{})
	out := []types.Alert{}
	for _, obs := range observations {
		for _, a := range e.Evaluate(playerID, obs) {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return e.order[out[i].Type] < e.order[out[j].Type]
	})
	return out
}

// AlertID derives a stable identifier for an alert.
func AlertID(playerID, date, alertType, metric string) string {
	name := playerID + "|" + date + "|" + alertType + "|" + metric
	return uuid.NewSHA1(alertNamespace, []byte(name)).String()
}

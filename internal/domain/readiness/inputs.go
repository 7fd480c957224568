package readiness

import (
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/registry"
	"github.com/okian/readiness/internal/domain/stats"
	"github.com/okian/readiness/internal/domain/types"
)

// HistoryStart is the earliest day of records needed to score from.
func (s *Scorer) HistoryStart(from time.Time) time.Time {
	return model.Day(from).AddDate(0, 0, -s.cfg.BaselineDays)
}

type dayValues map[string][]float64

// Series scores every day in [from, to]. records must cover
// [HistoryStart(from), to] for the HRV baseline; acwr maps a YYYY-MM-DD
// date to that day's ACWR.
func (s *Scorer) Series(from, to time.Time, records []model.MetricRecord, acwr map[string]*float64) ([]types.ReadinessPoint, error) {
	if err := model.ValidateRange(from, to); err != nil {
		return nil, err
	}
	byDay := make(map[string]dayValues)
	for _, r := range records {
		d := model.FormatDate(r.Date)
		dv := byDay[d]
		if dv == nil {
			dv = make(dayValues)
			byDay[d] = dv
		}
		mk := r.MetricKey()
		dv[mk] = append(dv[mk], r.Value)
	}

	var out []types.ReadinessPoint
	for d := model.Day(from); !d.After(model.Day(to)); d = d.AddDate(0, 0, 1) {
		key := model.FormatDate(d)
		in := inputsFor(d, byDay[key])
		in.ACWR = acwr[key]
		if in.HRV != nil {
			in.HRVBaseline = s.baseline(d, byDay)
		}
		out = append(out, s.Score(in))
	}
	return out, nil
}

func (s *Scorer) baseline(d time.Time, byDay map[string]dayValues) *float64 {
	hrvKey := model.MetricKey(model.FamilyAutonomic, registry.KeyHRV)
	var values []float64
	for back := s.cfg.BaselineDays; back >= 1; back-- {
		dv := byDay[model.FormatDate(d.AddDate(0, 0, -back))]
		if dv == nil {
			continue
		}
		if m, ok := stats.Mean(dv[hrvKey]); ok {
			values = append(values, m)
		}
	}
	if len(values) < s.cfg.MinBaselineSamples {
		return nil
	}
	m, _ := stats.Mean(values)
	return types.Float(m)
}

func inputsFor(d time.Time, dv dayValues) Inputs {
	in := Inputs{Date: d}
	if dv == nil {
		return in
	}
	get := func(family, key string) *float64 {
		m, ok := stats.Mean(dv[model.MetricKey(family, key)])
		if !ok {
			return nil
		}
		return types.Float(m)
	}
	in.SleepHours = get(model.FamilyWellness, registry.KeySleepHours)
	in.SleepQuality = get(model.FamilyWellness, registry.KeySleepQuality)
	in.Fatigue = get(model.FamilyWellness, registry.KeyFatigue)
	in.Soreness = get(model.FamilyWellness, registry.KeySoreness)
	in.Stress = get(model.FamilyWellness, registry.KeyStress)
	in.Mood = get(model.FamilyWellness, registry.KeyMood)
	in.HRV = get(model.FamilyAutonomic, registry.KeyHRV)
	in.RestingHR = get(model.FamilyAutonomic, registry.KeyRestingHR)
	return in
}

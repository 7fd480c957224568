// Package completeness reports how many days of a range carry data.
package completeness

import (
	"fmt"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/types"
)

// Compute counts distinct days in [from, to] with at least one record of
// family. Sessions count toward the training family.
func Compute(playerID, family string, from, to time.Time, metrics []model.MetricRecord, sessions []model.SessionRecord) (types.CompletenessReport, error) {
	if err := model.ValidateRange(from, to); err != nil {
		return types.CompletenessReport{}, err
	}
	if !model.IsFamily(family) {
		return types.CompletenessReport{}, fmt.Errorf("%w: %q", model.ErrInvalidFamily, family)
	}
	from, to = model.Day(from), model.Day(to)

	days := make(map[string]struct{})
	mark := func(d time.Time) {
		d = model.Day(d)
		if d.Before(from) || d.After(to) {
			return
		}
		days[model.FormatDate(d)] = struct{}{}
	}
	for _, m := range metrics {
		if m.Family == family {
			mark(m.Date)
		}
	}
	if family == model.FamilyTraining {
		for _, s := range sessions {
			mark(s.Date)
		}
	}

	total := model.DaysBetween(from, to)
	return types.CompletenessReport{
		PlayerID:        playerID,
		Family:          family,
		DateFrom:        model.FormatDate(from),
		DateTo:          model.FormatDate(to),
		DaysWithData:    len(days),
		TotalDays:       total,
		CompletenessPct: float64(len(days)) / float64(total) * 100,
	}, nil
}

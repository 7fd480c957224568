package risk

import (
	"math"

	"github.com/okian/readiness/internal/domain/stats"
	"github.com/okian/readiness/internal/domain/types"
)

// TrendDays is the readiness window used for the trend feature.
const TrendDays = 14

// SnapshotFrom assembles features from the latest workload point and the
// trailing readiness series (oldest first). The sample size is the number
// of days with sessions in the chronic window of the workload point.
func SnapshotFrom(w types.WorkloadPoint, readiness []types.ReadinessPoint, chronicWindow int) Snapshot {
	s := Snapshot{
		ACWR:       w.ACWR,
		Monotony:   w.Monotony,
		Strain:     w.Strain,
		SampleSize: w.ChronicDaysWithData,
		Window:     chronicWindow,
	}
	if len(readiness) > TrendDays {
		readiness = readiness[len(readiness)-TrendDays:]
	}
	ys := make([]float64, len(readiness))
	for i, p := range readiness {
		if p.Score == nil {
			ys[i] = math.NaN()
			continue
		}
		ys[i] = *p.Score
	}
	if slope, ok := stats.Slope(ys); ok {
		s.ReadinessTrend = types.Float(slope)
	}
	return s
}

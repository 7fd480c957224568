package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/readiness/internal/adapters/cache"
	"github.com/okian/readiness/internal/adapters/repository"
	"github.com/okian/readiness/internal/domain/alerting"
	"github.com/okian/readiness/internal/domain/completeness"
	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/risk"
	"github.com/okian/readiness/internal/domain/series"
	"github.com/okian/readiness/internal/domain/types"
	"github.com/okian/readiness/internal/domain/workload"
	"github.com/okian/readiness/pkg/logger"
	"github.com/okian/readiness/pkg/metrics"
)

// Cache kinds, also used as the operation label of query metrics.
const (
	KindSeries       = "series"
	KindWorkload     = "workload"
	KindReadiness    = "readiness"
	KindAlerts       = "alerts"
	KindRisk         = "risk"
	KindCompleteness = "completeness"
)

// GetSeries returns metric values bucketed by day, week or month.
// An empty metrics list selects every metric present in the range.
func (s *Service) GetSeries(ctx context.Context, playerID string, from, to time.Time, grouping string, metricKeys []string) (types.BucketedSeries, error) {
	if err := s.checkRange(from, to); err != nil {
		return types.BucketedSeries{}, err
	}
	g, err := series.ParseGrouping(grouping)
	if err != nil {
		return types.BucketedSeries{}, err
	}
	keys := append([]string(nil), metricKeys...)
	sort.Strings(keys)

	k := cache.Key{PlayerID: playerID, Kind: KindSeries, Window: window(from, to), Grouping: string(g), Extra: strings.Join(keys, ",")}
	return query(ctx, s, k, func(st repository.Reader) (types.BucketedSeries, error) {
		recs, err := st.FetchMetrics(ctx, playerID, "", model.Day(from), model.Day(to))
		if err != nil {
			return types.BucketedSeries{}, err
		}
		return s.builder.Build(series.Request{PlayerID: playerID, From: from, To: to, Grouping: g, Metrics: keys}, recs)
	})
}

// GetWorkload returns workload points ending at to. Zero windows use the
// configured defaults; days is the number of points, zero meaning one
// chronic window. A zero to means today. Both days and the chronic window
// are bounded by max range days.
func (s *Service) GetWorkload(ctx context.Context, playerID string, to time.Time, acute, chronic, days int) ([]types.WorkloadPoint, error) {
	if acute < 0 || chronic < 0 || days < 0 {
		return nil, fmt.Errorf("%w: windows must be positive", model.ErrInvalidWindow)
	}
	opts := s.workload
	if acute > 0 {
		opts.AcuteWindow = acute
	}
	if chronic > 0 {
		opts.ChronicWindow = chronic
	}
	if days > 0 {
		opts.Days = days
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = s.today()
	}
	to = model.Day(to)
	if n := opts.Days; n > s.maxRangeDays {
		return nil, fmt.Errorf("%w: %d days exceeds the %d day limit", model.ErrInvalidRange, n, s.maxRangeDays)
	}
	// the look-back walks a chronic window before the first point
	if opts.ChronicWindow > s.maxRangeDays {
		return nil, fmt.Errorf("%w: chronic window %d exceeds the %d day limit",
			model.ErrInvalidWindow, opts.ChronicWindow, s.maxRangeDays)
	}

	extra := fmt.Sprintf("a%d:c%d:d%d:%s", opts.AcuteWindow, opts.ChronicWindow, opts.Days, opts.Method)
	k := cache.Key{PlayerID: playerID, Kind: KindWorkload, Window: model.FormatDate(to), Extra: extra}
	return query(ctx, s, k, func(st repository.Reader) ([]types.WorkloadPoint, error) {
		from, end := opts.Range(to)
		sessions, err := st.FetchSessions(ctx, playerID, from, end)
		if err != nil {
			return nil, err
		}
		points, err := workload.Compute(sessions, to, opts)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			if p.LowConfidence {
				metrics.RecordLowConfidence(KindWorkload)
				break
			}
		}
		return points, nil
	})
}

// GetReadiness returns one readiness point per day in [from, to].
func (s *Service) GetReadiness(ctx context.Context, playerID string, from, to time.Time) ([]types.ReadinessPoint, error) {
	if err := s.checkRange(from, to); err != nil {
		return nil, err
	}
	from, to = model.Day(from), model.Day(to)

	k := cache.Key{PlayerID: playerID, Kind: KindReadiness, Window: window(from, to)}
	return query(ctx, s, k, func(st repository.Reader) ([]types.ReadinessPoint, error) {
		d, err := s.derive(ctx, st, playerID, from, to, s.scorer.HistoryStart(from))
		if err != nil {
			return nil, err
		}
		return d.readiness, nil
	})
}

// GetAlerts evaluates the alert rules for every day in [from, to].
func (s *Service) GetAlerts(ctx context.Context, playerID string, from, to time.Time) ([]types.Alert, error) {
	if err := s.checkRange(from, to); err != nil {
		return nil, err
	}
	from, to = model.Day(from), model.Day(to)

	k := cache.Key{PlayerID: playerID, Kind: KindAlerts, Window: window(from, to)}
	return query(ctx, s, k, func(st repository.Reader) ([]types.Alert, error) {
		derivedFrom := from.AddDate(0, 0, -s.observe.TrailingDays)
		recordsFrom := s.scorer.HistoryStart(derivedFrom)
		if gapFrom := from.AddDate(0, 0, -s.observe.Lookback); gapFrom.Before(recordsFrom) {
			recordsFrom = gapFrom
		}
		d, err := s.derive(ctx, st, playerID, derivedFrom, to, recordsFrom)
		if err != nil {
			return nil, err
		}

		h := alerting.History{
			Workload:  make(map[string]types.WorkloadPoint, len(d.workload)),
			Readiness: make(map[string]types.ReadinessPoint, len(d.readiness)),
			DataDays:  make(map[string]bool),
		}
		for _, p := range d.workload {
			h.Workload[p.Date] = p
		}
		for _, p := range d.readiness {
			h.Readiness[p.Date] = p
		}
		for _, r := range d.records {
			if r.Family == model.FamilyWellness || r.Family == model.FamilyAutonomic {
				h.DataDays[model.FormatDate(r.Date)] = true
			}
		}

		alerts := s.engine.EvaluateAll(playerID, alerting.Observe(from, to, h, s.observe))
		for _, a := range alerts {
			metrics.RecordAlert(a.Type, string(a.Severity))
		}
		return alerts, nil
	})
}

// GetRiskPrediction classifies injury risk over horizonDays as of asOf.
// A zero asOf means today.
func (s *Service) GetRiskPrediction(ctx context.Context, playerID string, horizonDays int, asOf time.Time) (types.RiskPrediction, error) {
	if err := risk.ValidateHorizon(horizonDays); err != nil {
		return types.RiskPrediction{}, err
	}
	if asOf.IsZero() {
		asOf = s.today()
	}
	asOf = model.Day(asOf)

	k := cache.Key{PlayerID: playerID, Kind: KindRisk, Window: model.FormatDate(asOf), Extra: "h" + strconv.Itoa(horizonDays)}
	return query(ctx, s, k, func(st repository.Reader) (types.RiskPrediction, error) {
		from := asOf.AddDate(0, 0, -(risk.TrendDays - 1))
		d, err := s.derive(ctx, st, playerID, from, asOf, s.scorer.HistoryStart(from))
		if err != nil {
			return types.RiskPrediction{}, err
		}
		if len(d.workload) == 0 {
			return types.RiskPrediction{}, fmt.Errorf("no workload point for %s", model.FormatDate(asOf))
		}
		w := d.workload[len(d.workload)-1]
		pred, err := s.predictor.Predict(playerID, asOf, horizonDays, risk.SnapshotFrom(w, d.readiness, s.workload.ChronicWindow))
		if err != nil {
			return types.RiskPrediction{}, err
		}
		if pred.LowConfidence {
			metrics.RecordLowConfidence(KindRisk)
		}
		return pred, nil
	})
}

// GetCompleteness reports the share of days in [from, to] with data of family.
func (s *Service) GetCompleteness(ctx context.Context, playerID, family string, from, to time.Time) (types.CompletenessReport, error) {
	if !model.IsFamily(family) {
		return types.CompletenessReport{}, fmt.Errorf("%w: %q", model.ErrInvalidFamily, family)
	}
	if err := s.checkRange(from, to); err != nil {
		return types.CompletenessReport{}, err
	}
	from, to = model.Day(from), model.Day(to)

	k := cache.Key{PlayerID: playerID, Kind: KindCompleteness, Window: window(from, to), Extra: family}
	return query(ctx, s, k, func(st repository.Reader) (types.CompletenessReport, error) {
		recs, err := st.FetchMetrics(ctx, playerID, family, from, to)
		if err != nil {
			return types.CompletenessReport{}, err
		}
		var sessions []model.SessionRecord
		if family == model.FamilyTraining {
			if sessions, err = st.FetchSessions(ctx, playerID, from, to); err != nil {
				return types.CompletenessReport{}, err
			}
		}
		return completeness.Compute(playerID, family, from, to, recs, sessions)
	})
}

// derived holds the per-day series shared by readiness, alerts and risk.
type derived struct {
	workload  []types.WorkloadPoint
	readiness []types.ReadinessPoint
	records   []model.MetricRecord
}

// derive computes workload and readiness for every day in [from, to].
// Metric records are read from recordsFrom so baselines have history.
func (s *Service) derive(ctx context.Context, st repository.Reader, playerID string, from, to, recordsFrom time.Time) (derived, error) {
	opts := s.workload
	opts.Days = model.DaysBetween(from, to)
	sessFrom, sessTo := opts.Range(to)
	sessions, err := st.FetchSessions(ctx, playerID, sessFrom, sessTo)
	if err != nil {
		return derived{}, err
	}
	points, err := workload.Compute(sessions, to, opts)
	if err != nil {
		return derived{}, err
	}

	recs, err := st.FetchMetrics(ctx, playerID, "", recordsFrom, to)
	if err != nil {
		return derived{}, err
	}
	acwr := make(map[string]*float64, len(points))
	for _, p := range points {
		acwr[p.Date] = p.ACWR
	}
	rd, err := s.scorer.Series(from, to, recs, acwr)
	if err != nil {
		return derived{}, err
	}
	return derived{workload: points, readiness: rd, records: recs}, nil
}

// query runs compute behind the player check and the result cache.
func query[T any](ctx context.Context, s *Service, k cache.Key, compute func(repository.Reader) (T, error)) (out T, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordQuery(k.Kind, outcome(err), float64(time.Since(start).Microseconds())/1000)
	}()

	st, err := s.reader()
	if err != nil {
		return out, err
	}
	if b, ok := s.cache.Get(ctx, k); ok {
		var cached T
		if jerr := json.Unmarshal(b, &cached); jerr == nil {
			metrics.RecordCacheHit(k.Kind)
			return cached, nil
		}
	}
	metrics.RecordCacheMiss(k.Kind)

	if err = s.checkPlayer(ctx, st, k.PlayerID); err != nil {
		return out, err
	}
	gen := s.generation(k.PlayerID)
	if out, err = compute(st); err != nil {
		return out, err
	}

	b, jerr := json.Marshal(out)
	if jerr != nil {
		s.log().Warn(ctx, "result not cacheable", logger.String("kind", k.Kind), logger.Error(jerr))
		return out, nil
	}
	s.storeIfCurrent(ctx, k, gen, b)
	return out, nil
}

func (s *Service) checkRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: from and to are required", model.ErrInvalidRange)
	}
	if err := model.ValidateRange(from, to); err != nil {
		return err
	}
	if n := model.DaysBetween(from, to); n > s.maxRangeDays {
		return fmt.Errorf("%w: %d days exceeds the %d day limit", model.ErrInvalidRange, n, s.maxRangeDays)
	}
	return nil
}

func (s *Service) checkPlayer(ctx context.Context, st repository.Reader, playerID string) error {
	if strings.TrimSpace(playerID) == "" {
		return fmt.Errorf("%w: empty player id", model.ErrUnknownPlayer)
	}
	ok, err := st.PlayerExists(ctx, playerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownPlayer, playerID)
	}
	return nil
}

func window(from, to time.Time) string {
	return model.FormatDate(from) + ".." + model.FormatDate(to)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrUnknownPlayer):
		return "not_found"
	case errors.Is(err, repository.ErrFetch):
		return "store_error"
	case IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}

// IsInvalidInput reports whether err is a structural request error.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		model.ErrInvalidRange,
		model.ErrInvalidDate,
		model.ErrInvalidGrouping,
		model.ErrInvalidWindow,
		model.ErrInvalidHorizon,
		model.ErrInvalidFamily,
		model.ErrInvalidRecord,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

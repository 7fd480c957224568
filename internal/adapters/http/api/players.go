package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/internal/domain/types"
)

// PlayerDependencies are the read operations served under /players/{id}.
type PlayerDependencies interface {
	GetSeries(ctx context.Context, playerID string, from, to time.Time, grouping string, metricKeys []string) (types.BucketedSeries, error)
	GetWorkload(ctx context.Context, playerID string, to time.Time, acute, chronic, days int) ([]types.WorkloadPoint, error)
	GetReadiness(ctx context.Context, playerID string, from, to time.Time) ([]types.ReadinessPoint, error)
	GetAlerts(ctx context.Context, playerID string, from, to time.Time) ([]types.Alert, error)
	GetRiskPrediction(ctx context.Context, playerID string, horizonDays int, asOf time.Time) (types.RiskPrediction, error)
	GetCompleteness(ctx context.Context, playerID, family string, from, to time.Time) (types.CompletenessReport, error)
}

// PlayerHandler handles per-player queries.
type PlayerHandler struct {
	deps PlayerDependencies
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies) *PlayerHandler {
	return &PlayerHandler{deps: deps}
}

// HandleGetSeries handles GET /players/{id}/series?from&to&grouping&metrics=a,b.
func (h *PlayerHandler) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_series"
	q := r.URL.Query()
	from, to, err := dateRange(q)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	out, err := h.deps.GetSeries(r.Context(), r.PathValue("id"), from, to, q.Get("grouping"), splitList(q.Get("metrics")))
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetWorkload handles GET /players/{id}/workload?to&acute&chronic&days.
func (h *PlayerHandler) HandleGetWorkload(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_workload"
	q := r.URL.Query()
	to, err := optionalDate(q, "to")
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	var acute, chronic, days int
	for name, dst := range map[string]*int{"acute": &acute, "chronic": &chronic, "days": &days} {
		if *dst, err = windowParam(q, name); err != nil {
			writeServiceError(w, r, op, err)
			return
		}
	}
	out, err := h.deps.GetWorkload(r.Context(), r.PathValue("id"), to, acute, chronic, days)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetReadiness handles GET /players/{id}/readiness?from&to.
func (h *PlayerHandler) HandleGetReadiness(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_readiness"
	from, to, err := dateRange(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	out, err := h.deps.GetReadiness(r.Context(), r.PathValue("id"), from, to)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetAlerts handles GET /players/{id}/alerts?from&to.
func (h *PlayerHandler) HandleGetAlerts(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_alerts"
	from, to, err := dateRange(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	out, err := h.deps.GetAlerts(r.Context(), r.PathValue("id"), from, to)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetRisk handles GET /players/{id}/risk?horizon&as_of.
func (h *PlayerHandler) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_risk"
	q := r.URL.Query()
	horizon, err := optionalInt(q, "horizon")
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	if horizon == 0 {
		horizon = 7
	}
	asOf, err := optionalDate(q, "as_of")
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	out, err := h.deps.GetRiskPrediction(r.Context(), r.PathValue("id"), horizon, asOf)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetCompleteness handles GET /players/{id}/completeness?family&from&to.
func (h *PlayerHandler) HandleGetCompleteness(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_completeness"
	q := r.URL.Query()
	from, to, err := dateRange(q)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	out, err := h.deps.GetCompleteness(r.Context(), r.PathValue("id"), q.Get("family"), from, to)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// dateRange reads from and to. Missing values stay zero and are rejected
// by the service as an invalid range.
func dateRange(q url.Values) (from, to time.Time, err error) {
	if from, err = optionalDate(q, "from"); err != nil {
		return from, to, err
	}
	to, err = optionalDate(q, "to")
	return from, to, err
}

func optionalDate(q url.Values, name string) (time.Time, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func optionalInt(q url.Values, name string) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}
	return n, nil
}

// windowParam reads an optional window length. Absent means the default;
// a given value must be positive.
func windowParam(q url.Values, name string) (int, error) {
	n, err := optionalInt(q, name)
	if err != nil {
		return 0, err
	}
	if q.Has(name) && n <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", model.ErrInvalidWindow, name, n)
	}
	return n, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

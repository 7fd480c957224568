package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/readiness/internal/app"
	"github.com/okian/readiness/internal/domain/model"
)

// maxIngestBody caps a single ingestion request.
const maxIngestBody = 8 << 20

// IngestDependencies accept raw record batches for asynchronous storage.
type IngestDependencies interface {
	SubmitMetrics(ctx context.Context, batchID string, records []model.MetricRecord) (service.IngestResult, error)
	SubmitSessions(ctx context.Context, batchID string, sessions []model.SessionRecord) (service.IngestResult, error)
}

// IngestHandler handles ingestion requests.
type IngestHandler struct {
	deps IngestDependencies
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps IngestDependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

// metricsRequest mirrors the OpenAPI schema for POST /ingest/metrics.
type metricsRequest struct {
	BatchID string          `json:"batch_id"`
	Records []metricPayload `json:"records"`
}

type metricPayload struct {
	PlayerID string   `json:"player_id"`
	Date     string   `json:"date"`
	Family   string   `json:"family"`
	Key      string   `json:"key"`
	Value    *float64 `json:"value"`
	Unit     string   `json:"unit"`
}

// sessionsRequest mirrors the OpenAPI schema for POST /ingest/sessions.
type sessionsRequest struct {
	BatchID  string           `json:"batch_id"`
	Sessions []sessionPayload `json:"sessions"`
}

type sessionPayload struct {
	SessionID         string  `json:"session_id"`
	PlayerID          string  `json:"player_id"`
	Date              string  `json:"date"`
	DurationMinutes   float64 `json:"duration_minutes"`
	PerceivedExertion float64 `json:"perceived_exertion"`
	SessionType       string  `json:"session_type"`
}

// HandlePostMetrics handles POST /ingest/metrics requests.
func (h *IngestHandler) HandlePostMetrics(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_metrics"
	var req metricsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	records := make([]model.MetricRecord, 0, len(req.Records))
	for i, p := range req.Records {
		d, err := model.ParseDate(p.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("records[%d]: %w", i, err)))
			return
		}
		if p.Value == nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("records[%d]: value is required", i)))
			return
		}
		records = append(records, model.MetricRecord{
			PlayerID: p.PlayerID,
			Date:     d,
			Family:   p.Family,
			Key:      p.Key,
			Value:    *p.Value,
			Unit:     p.Unit,
		})
	}
	res, err := h.deps.SubmitMetrics(r.Context(), req.BatchID, records)
	writeIngest(w, r, op, res, err)
}

// HandlePostSessions handles POST /ingest/sessions requests.
func (h *IngestHandler) HandlePostSessions(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_sessions"
	var req sessionsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sessions := make([]model.SessionRecord, 0, len(req.Sessions))
	for i, p := range req.Sessions {
		d, err := model.ParseDate(p.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("sessions[%d]: %w", i, err)))
			return
		}
		sessions = append(sessions, model.SessionRecord{
			SessionID:         p.SessionID,
			PlayerID:          p.PlayerID,
			Date:              d,
			DurationMinutes:   p.DurationMinutes,
			PerceivedExertion: p.PerceivedExertion,
			SessionType:       p.SessionType,
		})
	}
	res, err := h.deps.SubmitSessions(r.Context(), req.BatchID, sessions)
	writeIngest(w, r, op, res, err)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeIngest(w http.ResponseWriter, r *http.Request, op string, res service.IngestResult, err error) {
	switch {
	case err != nil:
		writeServiceError(w, r, op, err)
	case res.Duplicate:
		writeJSON(w, http.StatusOK, res)
	default:
		writeJSON(w, http.StatusAccepted, res)
	}
}

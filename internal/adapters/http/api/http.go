// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/readiness/internal/app"
	"github.com/okian/readiness/internal/domain/model"
	"github.com/okian/readiness/pkg/logger"
	"golang.org/x/time/rate"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PlayerDependencies
	IngestDependencies
	StatsProvider
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits player queries to rps requests per second with the
// given burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	playerHandler *PlayerHandler
	ingestHandler *IngestHandler
	limiter       *rate.Limiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		playerHandler: NewPlayerHandler(deps),
		ingestHandler: NewIngestHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /ingest/metrics", MetricsMiddleware(s.ingestHandler.HandlePostMetrics, "ingest_metrics"))
	mux.HandleFunc("POST /ingest/sessions", MetricsMiddleware(s.ingestHandler.HandlePostSessions, "ingest_sessions"))

	players := map[string]http.HandlerFunc{
		"series":       s.playerHandler.HandleGetSeries,
		"workload":     s.playerHandler.HandleGetWorkload,
		"readiness":    s.playerHandler.HandleGetReadiness,
		"alerts":       s.playerHandler.HandleGetAlerts,
		"risk":         s.playerHandler.HandleGetRisk,
		"completeness": s.playerHandler.HandleGetCompleteness,
	}
	for name, h := range players {
		mux.HandleFunc("GET /players/{id}/"+name, MetricsMiddleware(RateLimitMiddleware(h, s.limiter, name), name))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service errors into status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, Wrap(op, err))
}

func classify(err error) (status int, code string) {
	switch {
	case errors.Is(err, model.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, ErrBadRequest), service.IsInvalidInput(err):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrUnknownPlayer):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

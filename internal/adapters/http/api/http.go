// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/critreview/internal/adapters/remote"
	service "github.com/okian/critreview/internal/app"
	"github.com/okian/critreview/internal/domain/model"
	"github.com/okian/critreview/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// GetAllScores returns the cached or freshly fetched snapshot.
	GetAllScores(ctx context.Context) (model.ScoreMap, error)

	// Entry returns one course, normalized against field when it resolves.
	Entry(ctx context.Context, id, field string) (types.ScoreEntry, error)

	// Invalidate drops the cached snapshot.
	Invalidate(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	scoresHandler    *ScoresHandler
	normalizeHandler *NormalizeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		scoresHandler:    NewScoresHandler(deps),
		normalizeHandler: NewNormalizeHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/normalize", MetricsMiddleware(s.normalizeHandler.HandleNormalize, "normalize"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandleScores, "scores"))
	mux.HandleFunc("/scores/", MetricsMiddleware(s.scoresHandler.HandleGetEntry, "score"))
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

// writeUpstreamError maps a client error onto a status code. Failures talking
// to or decoding from the review API are the upstream's fault.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, remote.ErrFetch):
		writeError(w, http.StatusBadGateway, "fetch_failed", err)
	case errors.Is(err, remote.ErrDecode):
		writeError(w, http.StatusBadGateway, "decode_failed", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// Package server exposes the pipeline to the presentation collaborator:
// pollable read endpoints that always return last-known state, and
// operator control endpoints whose precondition failures surface as
// rejected operations with a reason.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/pipeline"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/registry"
	"github.com/FranciscoEmmanuel1998/TradingIA-sub002/internal/tuner"
)

// Server wraps the pipeline with an HTTP surface.
type Server struct {
	pipe   *pipeline.Pipeline
	logger zerolog.Logger
	mux    *http.ServeMux
}

// New creates the HTTP server around a pipeline.
func New(pipe *pipeline.Pipeline, logger zerolog.Logger) *Server {
	s := &Server{
		pipe:   pipe,
		logger: logger.With().Str("component", "server").Logger(),
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/features", s.handleFeatures)
	s.mux.HandleFunc("GET /api/signals", s.handleSignals)
	s.mux.HandleFunc("GET /api/accuracy", s.handleAccuracy)
	s.mux.HandleFunc("GET /api/versions", s.handleVersions)
	s.mux.HandleFunc("GET /api/versions/compare", s.handleCompare)
	s.mux.HandleFunc("GET /api/config", s.handleConfig)

	s.mux.HandleFunc("POST /api/learn", s.handleLearn)
	s.mux.HandleFunc("POST /api/promote", s.handlePromote)
	s.mux.HandleFunc("POST /api/rollback", s.handleRollback)
	s.mux.HandleFunc("POST /api/reset-config", s.handleResetConfig)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	exchange := r.URL.Query().Get("exchange")
	symbol := r.URL.Query().Get("symbol")
	if exchange == "" || symbol == "" {
		writeError(w, http.StatusBadRequest, "exchange and symbol query parameters are required")
		return
	}

	vec, ok := s.pipe.Features().GetOnline(exchange, symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no features observed for key")
		return
	}
	writeJSON(w, http.StatusOK, vec)
}

func (s *Server) handleSignals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.RecentSignals())
}

func (s *Server) handleAccuracy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Accuracy())
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.pipe.Registry().List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list versions failed")
		writeError(w, http.StatusInternalServerError, "list versions failed")
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "a and b query parameters are required")
		return
	}

	cmp, err := s.pipe.Registry().Compare(r.Context(), a, b)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown version id")
			return
		}
		s.logger.Error().Err(err).Msg("compare failed")
		writeError(w, http.StatusInternalServerError, "compare failed")
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"working": s.pipe.Config(),
	}
	if prod, err := s.pipe.Registry().Production(r.Context()); err == nil {
		resp["production"] = prod
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLearn(w http.ResponseWriter, _ *http.Request) {
	cfg, outcome := s.pipe.ForceLearningCycle()

	status := http.StatusOK
	if outcome != tuner.OutcomeApplied {
		// Precondition not met is a reported no-op, not a failure.
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{
		"outcome": outcome,
		"config":  cfg,
	})
}

type promoteRequest struct {
	VersionID string `json:"versionId"`
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VersionID == "" {
		writeError(w, http.StatusBadRequest, "versionId is required")
		return
	}

	if err := s.pipe.Promote(r.Context(), req.VersionID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown version id")
			return
		}
		s.logger.Error().Err(err).Str("version_id", req.VersionID).Msg("promote failed")
		writeError(w, http.StatusInternalServerError, "promote failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"promoted": req.VersionID})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	v, err := s.pipe.Rollback(r.Context())
	if err != nil {
		if errors.Is(err, registry.ErrNoArchivedVersion) {
			writeError(w, http.StatusConflict, "no archived version to roll back to")
			return
		}
		s.logger.Error().Err(err).Msg("rollback failed")
		writeError(w, http.StatusInternalServerError, "rollback failed")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleResetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.ResetConfig())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}

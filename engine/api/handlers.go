package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fintech-community/peerbench/engine/types"
)

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message":     "Community peer benchmarking API",
		"snapshot_id": s.service.SnapshotID(),
	})
}

// handleCompareByID compares a known client with its cluster
func (s *server) handleCompareByID(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	result, err := s.service.LookupByID(r.Context(), clientID)
	if err != nil {
		s.observeLookup("id", err)
		s.writeServiceError(w, err)
		return
	}

	s.observeLookup("id", nil)
	s.writeJSONResponse(w, http.StatusOK, result)
}

// handleCompareByProfile compares an ad hoc profile sent as form fields or JSON
func (s *server) handleCompareByProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.parseProfile(w, r)
	if err != nil {
		s.observeLookup("profile", err)
		s.writeServiceError(w, err)
		return
	}

	result, err := s.service.LookupByProfile(r.Context(), profile)
	if err != nil {
		s.observeLookup("profile", err)
		s.writeServiceError(w, err)
		return
	}

	s.observeLookup("profile", nil)
	s.writeJSONResponse(w, http.StatusOK, result)
}

// handleCommunity returns the community-wide summary
func (s *server) handleCommunity(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.CommunitySummary(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, summary)
}

// handleClusters returns per-cluster profiles
func (s *server) handleClusters(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.service.ClusterProfiles(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"snapshot_id": s.service.SnapshotID(),
		"clusters":    profiles,
		"count":       len(profiles),
	})
}

// handleHealth reports liveness plus process and host figures
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now(),
		"snapshot_id": s.service.SnapshotID(),
	}

	if summary, err := s.service.CommunitySummary(r.Context()); err == nil {
		status["rows"] = summary.TotalUsers
	}
	if s.host != nil {
		status["host"] = s.host.Snapshot()
	}

	s.writeJSONResponse(w, http.StatusOK, status)
}

// writeServiceError maps domain errors onto HTTP status codes
func (s *server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrInvalidProfile):
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Request cancelled")
	default:
		s.log.WithError(err).Error("Comparison request failed")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *server) observeLookup(kind string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, types.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, types.ErrInvalidProfile):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.metrics.ObserveLookup(kind, outcome)
}

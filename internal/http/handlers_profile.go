package http

import (
	"log/slog"
	"net/http"

	"jobledger/internal/log"
)

// handleGetProfile returns the worker profile, 404 until one is saved.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profiles.GetProfile(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreProfile(profile))
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var payload profilePayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	saved, err := s.profiles.SaveProfile(r.Context(), payload.toCore())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	// Pay math depends on the profile, so cached summaries are stale.
	s.flushSummaries()

	slog.InfoContext(r.Context(), "Profile saved",
		"role", string(saved.Role),
		log.FieldComponent, log.ComponentHTTP,
		log.FieldOperation, log.OpUpdate)

	respondJSON(w, http.StatusOK, fromCoreProfile(saved))
}

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"jobledger/internal/core"
	"jobledger/internal/log"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondCached writes a response body that was marshaled earlier.
func respondCached(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("Failed to write cached response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Error: code, Message: message})
}

// respondDomainError maps domain errors onto HTTP statuses: missing
// entities are 404, validation failures 400, everything else 500.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case isValidationError(err):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err.Error(),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentHTTP,
			"error_type", log.ErrorTypeInternal)
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrEmptyName,
		core.ErrEmptyAddress,
		core.ErrInvalidYards,
		core.ErrInvalidPaymentMethod,
		core.ErrInvalidCategory,
		core.ErrInvalidRecurrence,
		core.ErrInvalidRole,
		core.ErrInvalidRate,
		core.ErrInvalidWeek,
		core.ErrInvalidInput,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// decodeJSON decodes a request body into v. Callers that allow empty
// bodies check for io.EOF themselves.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

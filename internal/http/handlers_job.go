package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"jobledger/internal/core"
	"jobledger/internal/log"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	job, err := payload.toCore()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	created, err := s.jobs.CreateJob(r.Context(), job)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.totalJobs, 1)
	s.flushSummaries()

	slog.InfoContext(r.Context(), "Job created",
		log.FieldJobID, created.ID,
		log.FieldClientName, created.CompanyName,
		log.FieldAmount, created.Amount.Cents,
		log.FieldDate, created.Date.String(),
		log.FieldComponent, log.ComponentJob,
		log.FieldOperation, log.OpCreate)

	respondJSON(w, http.StatusCreated, fromCoreJob(created))
}

// handleListJobs serves both range queries (?from=&to=) and single-day
// queries (?date=).
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if dateStr := strings.TrimSpace(q.Get("date")); dateStr != "" {
		day, err := core.ParseDate(dateStr)
		if err != nil {
			s.respondDomainError(w, r, err)
			return
		}
		jobs, err := s.jobs.ListJobsByDay(r.Context(), day)
		if err != nil {
			s.respondDomainError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, fromCoreJobs(jobs))
		return
	}

	fromStr := strings.TrimSpace(q.Get("from"))
	toStr := strings.TrimSpace(q.Get("to"))
	if fromStr == "" || toStr == "" {
		respondError(w, http.StatusBadRequest, "invalid_request",
			"either date or both from and to query parameters are required")
		return
	}
	from, err := core.ParseDate(fromStr)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	to, err := core.ParseDate(toStr)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	jobs, err := s.jobs.ListJobsByRange(r.Context(), from, to)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreJobs(jobs))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreJob(job))
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	job, err := payload.toCore()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	job.ID = r.PathValue("id")

	updated, err := s.jobs.UpdateJob(r.Context(), job)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()
	respondJSON(w, http.StatusOK, fromCoreJob(updated))
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.jobs.DeleteJob(r.Context(), id); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()

	slog.InfoContext(r.Context(), "Job deleted",
		log.FieldJobID, id,
		log.FieldComponent, log.ComponentJob,
		log.FieldOperation, log.OpDelete)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpaidJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListUnpaidJobs(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreJobs(jobs))
}

func (s *Server) handleSearchJobs(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "q query parameter is required")
		return
	}

	jobs, err := s.jobs.SearchJobs(r.Context(), query)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreJobs(jobs))
}

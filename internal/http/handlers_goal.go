package http

import (
	"log/slog"
	"net/http"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/log"
)

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var payload goalPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	goal, err := payload.toCore()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	created, err := s.goals.CreateGoal(r.Context(), goal)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()

	slog.InfoContext(r.Context(), "Weekly goal created",
		log.FieldGoalID, created.ID,
		log.FieldWeekStart, created.WeekStart.String(),
		log.FieldAmount, created.IncomeTarget.Cents,
		log.FieldComponent, log.ComponentGoal,
		log.FieldOperation, log.OpCreate)

	respondJSON(w, http.StatusCreated, fromCoreGoal(created))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", 12)
	if err != nil || limit < 1 {
		respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive number")
		return
	}

	goals, err := s.goals.ListGoals(r.Context(), limit)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreGoals(goals))
}

// handleCurrentGoal returns the goal covering today, 404 when none is set.
func (s *Server) handleCurrentGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.goals.GetGoalForDate(r.Context(), core.DateOf(time.Now()))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreGoal(goal))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.goals.GetGoal(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreGoal(goal))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var payload goalPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	goal, err := payload.toCore()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	goal.ID = r.PathValue("id")

	updated, err := s.goals.UpdateGoal(r.Context(), goal)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()
	respondJSON(w, http.StatusOK, fromCoreGoal(updated))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.goals.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()
	w.WriteHeader(http.StatusNoContent)
}

// handleAllocateBill attaches a weekly slice of a bill to the goal,
// replacing any existing allocation for the same expense.
func (s *Server) handleAllocateBill(w http.ResponseWriter, r *http.Request) {
	var payload allocationPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}
	if payload.ExpenseID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "expense_id is required")
		return
	}

	cents, err := core.ParseDecimalToCents(payload.WeeklyAmount)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	goal, err := s.goals.AllocateBill(r.Context(), r.PathValue("id"), payload.ExpenseID, core.Money{Cents: cents})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()
	respondJSON(w, http.StatusOK, fromCoreGoal(goal))
}

func (s *Server) handleCompleteBill(w http.ResponseWriter, r *http.Request) {
	goal, err := s.goals.CompleteBill(r.Context(), r.PathValue("id"), r.PathValue("expenseID"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()
	respondJSON(w, http.StatusOK, fromCoreGoal(goal))
}

package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var payload expensePayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	expense, err := payload.toCore()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	created, err := s.expenses.CreateExpense(r.Context(), expense)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.totalExpenses, 1)
	s.flushSummaries()

	slog.InfoContext(r.Context(), "Expense created",
		log.FieldExpenseID, created.ID,
		log.FieldAmount, created.Amount.Cents,
		log.FieldDueDate, created.DueDate.String(),
		log.FieldComponent, log.ComponentExpense,
		log.FieldOperation, log.OpCreate)

	respondJSON(w, http.StatusCreated, fromCoreExpense(created))
}

// handleListExpenses lists expenses by due-date range. Defaults to the
// current month when no range is given.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromStr := strings.TrimSpace(q.Get("from"))
	toStr := strings.TrimSpace(q.Get("to"))

	var from, to core.Date
	var err error
	if fromStr == "" && toStr == "" {
		now := time.Now()
		from, to = core.MonthRange(now.Year(), int(now.Month()))
	} else {
		if fromStr == "" || toStr == "" {
			respondError(w, http.StatusBadRequest, "invalid_request",
				"both from and to query parameters are required")
			return
		}
		if from, err = core.ParseDate(fromStr); err != nil {
			s.respondDomainError(w, r, err)
			return
		}
		if to, err = core.ParseDate(toStr); err != nil {
			s.respondDomainError(w, r, err)
			return
		}
	}

	expenses, err := s.expenses.ListExpensesByDueRange(r.Context(), from, to)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreExpenses(expenses))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.expenses.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreExpense(expense))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var payload expensePayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	expense, err := payload.toCore()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	expense.ID = r.PathValue("id")

	updated, err := s.expenses.UpdateExpense(r.Context(), expense)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()
	respondJSON(w, http.StatusOK, fromCoreExpense(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.expenses.DeleteExpense(r.Context(), id); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()

	slog.InfoContext(r.Context(), "Expense deleted",
		log.FieldExpenseID, id,
		log.FieldComponent, log.ComponentExpense,
		log.FieldOperation, log.OpDelete)

	w.WriteHeader(http.StatusNoContent)
}

type payExpensePayload struct {
	PaidDate string `json:"paid_date"`
}

// handlePayExpense marks an expense paid. The body is optional; without
// one the expense is paid today.
func (s *Server) handlePayExpense(w http.ResponseWriter, r *http.Request) {
	var payload payExpensePayload
	if err := decodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	paidDate := core.DateOf(time.Now())
	if strings.TrimSpace(payload.PaidDate) != "" {
		var err error
		if paidDate, err = core.ParseDate(payload.PaidDate); err != nil {
			s.respondDomainError(w, r, err)
			return
		}
	}

	paid, err := s.expenses.MarkPaid(r.Context(), r.PathValue("id"), paidDate)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	s.flushSummaries()
	respondJSON(w, http.StatusOK, fromCoreExpense(paid))
}

// handleUpcomingExpenses lists unpaid bills due within the next N days
// (default 30), overdue ones included.
func (s *Server) handleUpcomingExpenses(w http.ResponseWriter, r *http.Request) {
	days, err := parseIntQuery(r, "days", 30)
	if err != nil || days < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "days must be a non-negative number")
		return
	}

	expenses, err := s.expenses.UpcomingExpenses(r.Context(), core.DateOf(time.Now()), days)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fromCoreExpenses(expenses))
}

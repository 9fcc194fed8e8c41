package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"jobledger/internal/core"
)

// Summary handlers cache marshaled responses keyed by the canonical
// period, so any date inside a week maps to the same entry. Every write
// handler flushes the cache.

func (s *Server) serveCachedSummary(w http.ResponseWriter, r *http.Request, key string, build func() (any, error)) {
	if body, ok := s.summaryCache.Get(key); ok {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		respondCached(w, body)
		return
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	resp, err := build()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.summaryCache.Set(key, body)
	respondCached(w, body)
}

func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	key := "weekly:" + core.WeekStart(date).String()
	s.serveCachedSummary(w, r, key, func() (any, error) {
		summary, err := s.summaries.Weekly(r.Context(), date)
		if err != nil {
			return nil, err
		}
		return fromCoreWeeklySummary(summary), nil
	})
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "year and month must be numbers")
		return
	}

	key := fmt.Sprintf("monthly:%d-%d", year, month)
	s.serveCachedSummary(w, r, key, func() (any, error) {
		summary, err := s.summaries.Monthly(r.Context(), year, month)
		if err != nil {
			return nil, err
		}
		return fromCoreMonthlySummary(summary), nil
	})
}

func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	year, err := parseIntQuery(r, "year", currentYear())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "year must be a number")
		return
	}

	key := fmt.Sprintf("yearly:%d", year)
	s.serveCachedSummary(w, r, key, func() (any, error) {
		summary, err := s.summaries.Yearly(r.Context(), year)
		if err != nil {
			return nil, err
		}
		return fromCoreYearlySummary(summary), nil
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	key := "suggestions:" + core.WeekStart(date).String()
	s.serveCachedSummary(w, r, key, func() (any, error) {
		plan, err := s.summaries.Suggestions(r.Context(), date)
		if err != nil {
			return nil, err
		}
		return fromCorePaymentPlan(plan), nil
	})
}

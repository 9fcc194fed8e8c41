package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"jobledger/internal/core"
)

// parseDateQuery reads a date query parameter in YYYY-MM-DD format,
// defaulting to today when absent.
func parseDateQuery(r *http.Request, name string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.DateOf(time.Now()), nil
	}
	return core.ParseDate(v)
}

// parseIntQuery reads an integer query parameter, returning the default
// when absent. Malformed values are an error, not silently defaulted.
func parseIntQuery(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// parseYearMonth extracts year and month from query parameters.
// Returns current year/month as defaults when not provided.
func parseYearMonth(r *http.Request) (year, month int, err error) {
	now := time.Now()
	year, err = parseIntQuery(r, "year", now.Year())
	if err != nil {
		return 0, 0, err
	}
	month, err = parseIntQuery(r, "month", int(now.Month()))
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func currentYear() int {
	return time.Now().Year()
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

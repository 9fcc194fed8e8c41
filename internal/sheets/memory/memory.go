// Package memory is an in-memory ledger used for tests and for running
// the server without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"jobledger/internal/core"
	"jobledger/internal/sheets"
)

type Ledger struct {
	mu   sync.Mutex
	rows map[int]map[string]core.Job // year -> job ID -> row
	err  error
}

var _ sheets.LedgerExporter = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{rows: map[int]map[string]core.Job{}}
}

// SetErr makes every subsequent call fail. Tests use it to exercise
// retry handling.
func (l *Ledger) SetErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *Ledger) UpsertJob(_ context.Context, j core.Job) (string, error) {
	if err := j.Validate(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	year := j.Date.Year()
	if l.rows[year] == nil {
		l.rows[year] = map[string]core.Job{}
	}
	l.rows[year][j.ID] = j
	return fmt.Sprintf("mem:%d:%s", year, j.ID), nil
}

func (l *Ledger) RemoveJob(_ context.Context, jobID string, jobDate core.Date) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if tab, ok := l.rows[jobDate.Year()]; ok {
		delete(tab, jobID)
	}
	return nil
}

// Exported returns a copy of the jobs held for a year.
func (l *Ledger) Exported(year int) []core.Job {
	l.mu.Lock()
	defer l.mu.Unlock()
	tab := l.rows[year]
	out := make([]core.Job, 0, len(tab))
	for _, j := range tab {
		out = append(out, j)
	}
	return out
}

// Package memory is an in-memory store used for tests and for running
// the server without a database file.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/store"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	jobs     []core.Job
	expenses []core.Expense
	goals    []core.WeeklyGoal
	profile  *core.Profile
	queue    []syncRow
	nextSync int64
}

type syncRow struct {
	item   store.SyncItem
	status string
	saved  time.Time
}

var (
	_ store.JobStore     = (*Store)(nil)
	_ store.ExpenseStore = (*Store)(nil)
	_ store.GoalStore    = (*Store)(nil)
	_ store.ProfileStore = (*Store)(nil)
	_ store.SyncQueue    = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func cloneJob(j core.Job) core.Job {
	out := j
	out.LineItems = append([]core.LineItem(nil), j.LineItems...)
	if j.Billing != nil {
		b := *j.Billing
		out.Billing = &b
	}
	return out
}

func cloneGoal(g core.WeeklyGoal) core.WeeklyGoal {
	out := g
	out.Allocations = append([]core.BillAllocation(nil), g.Allocations...)
	return out
}

func (s *Store) CreateJob(_ context.Context, j core.Job) (core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j.ID = newID(j.ID)
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	s.jobs = append(s.jobs, cloneJob(j))
	return j, nil
}

func (s *Store) GetJob(_ context.Context, id string) (core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.ID == id {
			return cloneJob(j), nil
		}
	}
	return core.Job{}, core.ErrNotFound
}

func (s *Store) UpdateJob(_ context.Context, j core.Job) (core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID == j.ID {
			j.CreatedAt = s.jobs[i].CreatedAt
			j.UpdatedAt = time.Now().UTC()
			s.jobs[i] = cloneJob(j)
			return j, nil
		}
	}
	return core.Job{}, core.ErrNotFound
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != id {
			continue
		}
		s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
		// Exports queued before the delete would push a row for a job
		// that no longer exists, so drop them.
		kept := s.queue[:0]
		for _, row := range s.queue {
			if row.status == "pending" && row.item.JobID == id && row.item.Operation == store.SyncOpUpsert {
				continue
			}
			kept = append(kept, row)
		}
		s.queue = kept
		return nil
	}
	return core.ErrNotFound
}

func (s *Store) ListJobsByRange(_ context.Context, from, to core.Date) ([]core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Job
	for _, j := range s.jobs {
		if j.Date.Within(from, to) {
			out = append(out, cloneJob(j))
		}
	}
	core.AssignSequenceNumbers(out)
	return out, nil
}

func (s *Store) ListUnpaidJobs(_ context.Context) ([]core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Job
	for _, j := range s.jobs {
		if !j.IsPaid {
			out = append(out, cloneJob(j))
		}
	}
	core.AssignSequenceNumbers(out)
	return out, nil
}

func (s *Store) SearchJobs(_ context.Context, query string) ([]core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []core.Job
	for _, j := range s.jobs {
		if q == "" {
			continue
		}
		if strings.Contains(strings.ToLower(j.CompanyName), q) ||
			strings.Contains(strings.ToLower(j.Address), q) ||
			strings.Contains(strings.ToLower(j.City), q) {
			out = append(out, cloneJob(j))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Date.Time.After(out[b].Date.Time)
	})
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.RecurringSourceID != "" {
		for _, other := range s.expenses {
			if other.RecurringSourceID == e.RecurringSourceID && other.DueDate.Time.Equal(e.DueDate.Time) {
				return core.Expense{}, fmt.Errorf("expense for source %s due %s already exists", e.RecurringSourceID, e.DueDate)
			}
		}
	}

	e.ID = newID(e.ID)
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, core.ErrNotFound
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.expenses {
		if s.expenses[i].ID == e.ID {
			e.CreatedAt = s.expenses[i].CreatedAt
			e.RecurringSourceID = s.expenses[i].RecurringSourceID
			e.UpdatedAt = time.Now().UTC()
			s.expenses[i] = e
			return e, nil
		}
	}
	return core.Expense{}, core.ErrNotFound
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.expenses {
		if s.expenses[i].ID == id {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			for gi := range s.goals {
				for bi := range s.goals[gi].Allocations {
					if s.goals[gi].Allocations[bi].ExpenseID == id {
						s.goals[gi].Allocations[bi].ExpenseID = ""
					}
				}
			}
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) ListExpensesByDueRange(_ context.Context, from, to core.Date) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Expense
	for _, e := range s.expenses {
		if e.DueDate.Within(from, to) {
			out = append(out, e)
		}
	}
	sortExpensesByDue(out)
	return out, nil
}

func (s *Store) ListUnpaidExpenses(_ context.Context, dueOnOrBefore core.Date) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Expense
	for _, e := range s.expenses {
		if !e.IsPaid && !e.DueDate.Time.After(dueOnOrBefore.Time) {
			out = append(out, e)
		}
	}
	sortExpensesByDue(out)
	return out, nil
}

func (s *Store) ListExpensesPaidInRange(_ context.Context, from, to core.Date) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Expense
	for _, e := range s.expenses {
		if e.IsPaid && !e.PaidDate.IsEmpty() && e.PaidDate.Within(from, to) {
			out = append(out, e)
		}
	}
	sortExpensesByDue(out)
	return out, nil
}

func (s *Store) MarkExpensePaid(_ context.Context, id string, paidOn core.Date) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.expenses {
		if s.expenses[i].ID == id {
			s.expenses[i].IsPaid = true
			s.expenses[i].PaidDate = paidOn
			s.expenses[i].UpdatedAt = time.Now().UTC()
			return s.expenses[i], nil
		}
	}
	return core.Expense{}, core.ErrNotFound
}

func (s *Store) ListDueRecurring(_ context.Context, asOf core.Date) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spawned := make(map[string]bool, len(s.expenses))
	for _, e := range s.expenses {
		if e.RecurringSourceID != "" {
			spawned[e.RecurringSourceID] = true
		}
	}

	var out []core.Expense
	for _, e := range s.expenses {
		if e.Recurrence == core.OneTime {
			continue
		}
		if e.DueDate.Time.After(asOf.Time) || spawned[e.ID] {
			continue
		}
		out = append(out, e)
	}
	sortExpensesByDue(out)
	return out, nil
}

func sortExpensesByDue(out []core.Expense) {
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].DueDate.Time.Before(out[b].DueDate.Time)
	})
}

func (s *Store) CreateGoal(_ context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.goals {
		if other.WeekStart.Time.Equal(g.WeekStart.Time) {
			return core.WeeklyGoal{}, fmt.Errorf("goal for week %s already exists", g.WeekStart)
		}
	}

	g.ID = newID(g.ID)
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	s.goals = append(s.goals, cloneGoal(g))
	return g, nil
}

func (s *Store) GetGoal(_ context.Context, id string) (core.WeeklyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.goals {
		if g.ID == id {
			return cloneGoal(g), nil
		}
	}
	return core.WeeklyGoal{}, core.ErrNotFound
}

func (s *Store) GetGoalByWeek(_ context.Context, weekStart core.Date) (core.WeeklyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.goals {
		if g.WeekStart.Time.Equal(weekStart.Time) {
			return cloneGoal(g), nil
		}
	}
	return core.WeeklyGoal{}, core.ErrNotFound
}

func (s *Store) UpdateGoal(_ context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.goals {
		if s.goals[i].ID == g.ID {
			g.CreatedAt = s.goals[i].CreatedAt
			g.UpdatedAt = time.Now().UTC()
			s.goals[i] = cloneGoal(g)
			return g, nil
		}
	}
	return core.WeeklyGoal{}, core.ErrNotFound
}

func (s *Store) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) ListGoals(_ context.Context, limit int) ([]core.WeeklyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.WeeklyGoal, 0, len(s.goals))
	for _, g := range s.goals {
		out = append(out, cloneGoal(g))
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].WeekStart.Time.After(out[b].WeekStart.Time)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListGoalsByRange(_ context.Context, from, to core.Date) ([]core.WeeklyGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.WeeklyGoal
	for _, g := range s.goals {
		if g.WeekEnd.Before(from.Time) || g.WeekStart.After(to.Time) {
			continue
		}
		out = append(out, cloneGoal(g))
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].WeekStart.Time.Before(out[b].WeekStart.Time)
	})
	return out, nil
}

func (s *Store) GetProfile(_ context.Context) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile == nil {
		return core.Profile{}, core.ErrNotFound
	}
	return *s.profile, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = newID(p.ID)
	p.UpdatedAt = time.Now().UTC()
	s.profile = &p
	return p, nil
}

func (s *Store) EnqueueSync(_ context.Context, req store.SyncRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSync++
	now := time.Now().UTC()
	s.queue = append(s.queue, syncRow{
		item: store.SyncItem{
			ID:        s.nextSync,
			JobID:     req.JobID,
			Operation: req.Operation,
			JobDate:   req.JobDate,
			CreatedAt: now,
		},
		status: "pending",
		saved:  now,
	})
	return nil
}

func (s *Store) PendingSyncItems(_ context.Context, limit int) ([]store.SyncItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	var out []store.SyncItem
	for _, row := range s.queue {
		if row.status != "pending" {
			continue
		}
		out = append(out, row.item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.queue {
		if s.queue[i].item.ID == id {
			s.queue[i].status = "synced"
			s.queue[i].saved = time.Now().UTC()
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) RecordSyncError(_ context.Context, id int64, syncErr string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.queue {
		if s.queue[i].item.ID == id {
			s.queue[i].item.Attempts++
			s.queue[i].item.LastError = syncErr
			s.queue[i].saved = time.Now().UTC()
			return s.queue[i].item.Attempts, nil
		}
	}
	return 0, core.ErrNotFound
}

func (s *Store) MarkSyncFailed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.queue {
		if s.queue[i].item.ID == id {
			s.queue[i].status = "failed"
			s.queue[i].saved = time.Now().UTC()
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) DeleteSyncedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []syncRow
	var removed int64
	for _, row := range s.queue {
		if row.status == "synced" && row.saved.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	s.queue = kept
	return removed, nil
}

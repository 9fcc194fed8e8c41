package store

import (
	"context"
	"time"

	"jobledger/internal/core"
)

// Ports for the persistence backends. Every backend implements the four
// entity stores plus the sync queue.

type (
	JobStore interface {
		CreateJob(ctx context.Context, j core.Job) (core.Job, error)
		GetJob(ctx context.Context, id string) (core.Job, error)
		// UpdateJob replaces the stored job wholesale, line items included.
		UpdateJob(ctx context.Context, j core.Job) (core.Job, error)
		DeleteJob(ctx context.Context, id string) error
		// ListJobsByRange returns jobs dated within [from, to] inclusive,
		// ordered by date then creation time, sequence numbers assigned.
		ListJobsByRange(ctx context.Context, from, to core.Date) ([]core.Job, error)
		ListUnpaidJobs(ctx context.Context) ([]core.Job, error)
		// SearchJobs matches company name, address, or city, case-insensitively.
		SearchJobs(ctx context.Context, query string) ([]core.Job, error)
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, id string) error
		// ListExpensesByDueRange returns expenses due within [from, to],
		// ordered by due date.
		ListExpensesByDueRange(ctx context.Context, from, to core.Date) ([]core.Expense, error)
		// ListUnpaidExpenses returns unpaid expenses due on or before asOf.
		ListUnpaidExpenses(ctx context.Context, asOf core.Date) ([]core.Expense, error)
		// ListExpensesPaidInRange returns expenses whose paid date falls
		// within [from, to].
		ListExpensesPaidInRange(ctx context.Context, from, to core.Date) ([]core.Expense, error)
		MarkExpensePaid(ctx context.Context, id string, paidDate core.Date) (core.Expense, error)
		// ListDueRecurring returns recurring expenses due on or before asOf
		// that have not spawned their next occurrence yet.
		ListDueRecurring(ctx context.Context, asOf core.Date) ([]core.Expense, error)
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error)
		GetGoal(ctx context.Context, id string) (core.WeeklyGoal, error)
		// GetGoalByWeek looks a goal up by its exact week start date.
		GetGoalByWeek(ctx context.Context, weekStart core.Date) (core.WeeklyGoal, error)
		UpdateGoal(ctx context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error)
		DeleteGoal(ctx context.Context, id string) error
		// ListGoals returns goals most recent week first, at most limit.
		ListGoals(ctx context.Context, limit int) ([]core.WeeklyGoal, error)
		// ListGoalsByRange returns goals whose week overlaps [from, to],
		// earliest week first.
		ListGoalsByRange(ctx context.Context, from, to core.Date) ([]core.WeeklyGoal, error)
	}

	ProfileStore interface {
		// GetProfile returns the stored profile, or core.ErrNotFound.
		GetProfile(ctx context.Context) (core.Profile, error)
		SaveProfile(ctx context.Context, p core.Profile) (core.Profile, error)
	}

	// SyncQueue is the durable outbox for ledger export.
	SyncQueue interface {
		EnqueueSync(ctx context.Context, req SyncRequest) error
		PendingSyncItems(ctx context.Context, limit int) ([]SyncItem, error)
		MarkSynced(ctx context.Context, id int64) error
		// RecordSyncError increments the attempt counter and returns the
		// new count; callers decide when to give up.
		RecordSyncError(ctx context.Context, id int64, reason string) (int, error)
		MarkSyncFailed(ctx context.Context, id int64) error
		// DeleteSyncedBefore removes synced items older than cutoff and
		// returns how many were removed.
		DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)

type SyncOperation string

const (
	SyncOpUpsert SyncOperation = "upsert"
	SyncOpDelete SyncOperation = "delete"
)

// SyncRequest enqueues one export. JobDate is denormalized so deletes can
// still locate the right ledger tab after the job row is gone.
type SyncRequest struct {
	JobID     string
	Operation SyncOperation
	JobDate   core.Date
}

// SyncItem is one queued export.
type SyncItem struct {
	ID        int64
	JobID     string
	Operation SyncOperation
	JobDate   core.Date
	Attempts  int
	LastError string
	CreatedAt time.Time
}

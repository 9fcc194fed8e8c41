package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/store"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestJobRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateJob(ctx, core.Job{
		Date:          core.NewDate(2025, 3, 3),
		CompanyName:   "Acme Concrete",
		Address:       "44 Elm St",
		City:          "Springfield",
		Yards:         8.5,
		PaymentMethod: core.Check,
		Amount:        core.Money{Cents: 45000},
		CheckNumber:   "1042",
		PaymentToMe:   true,
		Billing: &core.BillingDetails{
			InvoiceNumber: "INV-7",
			InvoiceDate:   core.NewDate(2025, 3, 3),
			DueDate:       core.NewDate(2025, 4, 2),
			ContactName:   "Pat",
			ContactEmail:  "pat@acme.test",
		},
		LineItems: []core.LineItem{
			{Description: "Pump rental", Amount: core.Money{Cents: 12000}},
			{Description: "Fuel", Amount: core.Money{Cents: 3500}},
		},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	got, err := repo.GetJob(ctx, created.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Address != "44 Elm St" || got.Yards != 8.5 || got.Amount.Cents != 45000 {
		t.Fatalf("unexpected job: %+v", got)
	}
	if got.Billing == nil || got.Billing.InvoiceNumber != "INV-7" || got.Billing.DueDate.String() != "2025-04-02" {
		t.Fatalf("unexpected billing: %+v", got.Billing)
	}
	if len(got.LineItems) != 2 || got.LineItems[0].Description != "Pump rental" {
		t.Fatalf("unexpected line items: %+v", got.LineItems)
	}

	got.IsPaid = true
	got.LineItems = got.LineItems[:1]
	if _, err := repo.UpdateJob(ctx, got); err != nil {
		t.Fatalf("update job: %v", err)
	}
	got, _ = repo.GetJob(ctx, created.ID)
	if !got.IsPaid || len(got.LineItems) != 1 {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := repo.DeleteJob(ctx, created.ID); err != nil {
		t.Fatalf("delete job: %v", err)
	}
	if _, err := repo.GetJob(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListJobsByRange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	days := []core.Date{
		core.NewDate(2025, 3, 3),
		core.NewDate(2025, 3, 3),
		core.NewDate(2025, 3, 5),
		core.NewDate(2025, 3, 12),
	}
	for i, d := range days {
		if _, err := repo.CreateJob(ctx, core.Job{
			Date: d, Address: "addr", PaymentMethod: core.Cash,
			Amount: core.Money{Cents: int64(1000 * (i + 1))}, PaymentToMe: true,
		}); err != nil {
			t.Fatalf("create job: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	jobs, err := repo.ListJobsByRange(ctx, core.NewDate(2025, 3, 2), core.NewDate(2025, 3, 8))
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs in range, got %d", len(jobs))
	}
	if jobs[0].SequenceNumber != 1 || jobs[1].SequenceNumber != 2 || jobs[2].SequenceNumber != 1 {
		t.Fatalf("unexpected sequence numbers: %d %d %d",
			jobs[0].SequenceNumber, jobs[1].SequenceNumber, jobs[2].SequenceNumber)
	}
	if jobs[0].Amount.Cents != 1000 {
		t.Fatalf("expected creation order within day, got %d", jobs[0].Amount.Cents)
	}
}

func TestSearchJobs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateJob(ctx, core.Job{
		Date: core.NewDate(2025, 3, 3), CompanyName: "Acme Concrete",
		Address: "44 Elm St", PaymentMethod: core.Cash, PaymentToMe: true,
	}); err != nil {
		t.Fatalf("create job: %v", err)
	}

	got, err := repo.SearchJobs(ctx, "ACME")
	if err != nil || len(got) != 1 {
		t.Fatalf("case-insensitive search: %d err=%v", len(got), err)
	}
	got, _ = repo.SearchJobs(ctx, "elm")
	if len(got) != 1 {
		t.Fatalf("address search: %d", len(got))
	}
	got, _ = repo.SearchJobs(ctx, "nomatch")
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestExpenseLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e, err := repo.CreateExpense(ctx, core.Expense{
		Name:       "Shop rent",
		Amount:     core.Money{Cents: 100000},
		DueDate:    core.NewDate(2025, 3, 1),
		Category:   core.Fixed,
		Recurrence: core.Monthly,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	unpaid, err := repo.ListUnpaidExpenses(ctx, core.NewDate(2025, 3, 31))
	if err != nil || len(unpaid) != 1 {
		t.Fatalf("unpaid: %d err=%v", len(unpaid), err)
	}

	paid, err := repo.MarkExpensePaid(ctx, e.ID, core.NewDate(2025, 3, 4))
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !paid.IsPaid || paid.PaidDate.String() != "2025-03-04" {
		t.Fatalf("unexpected paid state: %+v", paid)
	}

	inRange, err := repo.ListExpensesPaidInRange(ctx, core.NewDate(2025, 3, 2), core.NewDate(2025, 3, 8))
	if err != nil || len(inRange) != 1 {
		t.Fatalf("paid in range: %d err=%v", len(inRange), err)
	}

	if err := repo.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	if _, err := repo.GetExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecurringSpawnOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	source, err := repo.CreateExpense(ctx, core.Expense{
		Name:       "Truck insurance",
		Amount:     core.Money{Cents: 30000},
		DueDate:    core.NewDate(2025, 3, 1),
		Category:   core.Business,
		Recurrence: core.Monthly,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}

	due, err := repo.ListDueRecurring(ctx, core.NewDate(2025, 3, 15))
	if err != nil || len(due) != 1 {
		t.Fatalf("due recurring: %d err=%v", len(due), err)
	}

	next := core.Expense{
		Name:              source.Name,
		Amount:            source.Amount,
		DueDate:           core.NewDate(2025, 4, 1),
		Category:          source.Category,
		Recurrence:        source.Recurrence,
		RecurringSourceID: source.ID,
	}
	if _, err := repo.CreateExpense(ctx, next); err != nil {
		t.Fatalf("spawn next occurrence: %v", err)
	}
	if _, err := repo.CreateExpense(ctx, next); err == nil {
		t.Fatalf("expected unique index to reject duplicate spawn")
	}

	due, _ = repo.ListDueRecurring(ctx, core.NewDate(2025, 3, 15))
	if len(due) != 0 {
		t.Fatalf("source should stop being due once spawned, got %d", len(due))
	}
}

func TestGoalRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	week := core.NewDate(2025, 3, 2)

	g, err := repo.CreateGoal(ctx, core.WeeklyGoal{
		WeekStart:    week,
		WeekEnd:      week.AddDays(6),
		IncomeTarget: core.Money{Cents: 250000},
		Notes:        "push for the quarterly bills",
		Allocations: []core.BillAllocation{
			{ExpenseID: "exp-1", Name: "Rent", WeeklyAmount: core.Money{Cents: 25000}},
			{Name: "Fuel float", WeeklyAmount: core.Money{Cents: 8000}},
		},
	})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	got, err := repo.GetGoalByWeek(ctx, week)
	if err != nil {
		t.Fatalf("get goal by week: %v", err)
	}
	if got.ID != g.ID || len(got.Allocations) != 2 || got.Allocations[0].Name != "Rent" {
		t.Fatalf("unexpected goal: %+v", got)
	}

	got.Allocations[0].IsComplete = true
	got.ActualIncome = core.Money{Cents: 120000}
	if _, err := repo.UpdateGoal(ctx, got); err != nil {
		t.Fatalf("update goal: %v", err)
	}
	got, _ = repo.GetGoal(ctx, g.ID)
	if !got.Allocations[0].IsComplete || got.ActualIncome.Cents != 120000 {
		t.Fatalf("update not persisted: %+v", got)
	}

	list, err := repo.ListGoals(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("list goals: %d err=%v", len(list), err)
	}

	if err := repo.DeleteGoal(ctx, g.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}
	if _, err := repo.GetGoal(ctx, g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetProfile(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}

	rate, _ := decimal.NewFromString("0.35")
	p, err := repo.SaveProfile(ctx, core.Profile{
		Name:           "Marco",
		Role:           core.RoleEmployee,
		CommissionRate: rate,
		KeepsCash:      true,
	})
	if err != nil {
		t.Fatalf("save profile: %v", err)
	}

	p.KeepsCheck = true
	if _, err := repo.SaveProfile(ctx, p); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := repo.GetProfile(ctx)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.ID != p.ID || !got.KeepsCash || !got.KeepsCheck {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if !got.CommissionRate.Equal(rate) {
		t.Fatalf("unexpected rate: %s", got.CommissionRate)
	}
}

func TestSyncQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.EnqueueSync(ctx, store.SyncRequest{
		JobID: "job-1", Operation: store.SyncOpUpsert, JobDate: core.NewDate(2025, 3, 3),
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.EnqueueSync(ctx, store.SyncRequest{
		JobID: "job-2", Operation: store.SyncOpDelete, JobDate: core.NewDate(2024, 12, 31),
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	items, err := repo.PendingSyncItems(ctx, 10)
	if err != nil || len(items) != 2 {
		t.Fatalf("pending: %d err=%v", len(items), err)
	}
	if items[0].JobID != "job-1" || items[1].Operation != store.SyncOpDelete {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[1].JobDate.Year() != 2024 {
		t.Fatalf("job date lost in the queue: %+v", items[1])
	}

	attempts, err := repo.RecordSyncError(ctx, items[0].ID, "sheet unavailable")
	if err != nil || attempts != 1 {
		t.Fatalf("record error: attempts=%d err=%v", attempts, err)
	}
	attempts, _ = repo.RecordSyncError(ctx, items[0].ID, "sheet unavailable")
	if attempts != 2 {
		t.Fatalf("expected attempts=2, got %d", attempts)
	}

	if err := repo.MarkSynced(ctx, items[0].ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncFailed(ctx, items[1].ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	items, _ = repo.PendingSyncItems(ctx, 10)
	if len(items) != 0 {
		t.Fatalf("expected drained queue, got %d", len(items))
	}

	removed, err := repo.DeleteSyncedBefore(ctx, time.Now().Add(time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("cleanup: removed=%d err=%v", removed, err)
	}
}

func TestDeleteJobClearsPendingSync(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	j, err := repo.CreateJob(ctx, core.Job{
		Date: core.NewDate(2025, 3, 3), Address: "addr",
		PaymentMethod: core.Cash, PaymentToMe: true,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := repo.EnqueueSync(ctx, store.SyncRequest{
		JobID: j.ID, Operation: store.SyncOpUpsert, JobDate: j.Date,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := repo.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("delete job: %v", err)
	}

	items, _ := repo.PendingSyncItems(ctx, 10)
	if len(items) != 0 {
		t.Fatalf("pending upsert should be dropped with the job, got %d", len(items))
	}
}

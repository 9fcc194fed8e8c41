package services

import (
	"context"
	"fmt"

	"jobledger/internal/core"
	"jobledger/internal/store"
)

// ExpenseService is the validation gate in front of the expense store.
// Expenses stay local; only jobs are exported to the ledger.
type ExpenseService struct {
	expenses store.ExpenseStore
}

func NewExpenseService(expenses store.ExpenseStore) *ExpenseService {
	return &ExpenseService{expenses: expenses}
}

func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	created, err := s.expenses.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	return created, nil
}

// UpdateExpense replaces the stored expense. Flipping is_paid back to
// false clears the paid date, so clients can round-trip the record they
// read without scrubbing it first.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if !e.IsPaid {
		e.PaidDate = core.Date{}
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return s.expenses.UpdateExpense(ctx, e)
}

func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.expenses.GetExpense(ctx, id)
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	return s.expenses.DeleteExpense(ctx, id)
}

// MarkPaid stamps the expense paid on the given date.
func (s *ExpenseService) MarkPaid(ctx context.Context, id string, paidDate core.Date) (core.Expense, error) {
	if err := paidDate.Validate(); err != nil {
		return core.Expense{}, err
	}
	return s.expenses.MarkExpensePaid(ctx, id, paidDate)
}

func (s *ExpenseService) ListExpensesByDueRange(ctx context.Context, from, to core.Date) ([]core.Expense, error) {
	if from.After(to.Time) {
		return nil, core.ErrInvalidDate
	}
	return s.expenses.ListExpensesByDueRange(ctx, from, to)
}

// UpcomingExpenses returns unpaid bills due within the next days,
// overdue ones included.
func (s *ExpenseService) UpcomingExpenses(ctx context.Context, asOf core.Date, days int) ([]core.Expense, error) {
	if days < 0 {
		return nil, core.ErrInvalidDate
	}
	return s.expenses.ListUnpaidExpenses(ctx, asOf.AddDays(days))
}

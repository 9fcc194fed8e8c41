package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/store"
)

// RecurringProcessor materializes the next occurrence of recurring bills.
// A recurring expense is due for processing once its due date has passed
// and nothing points back at it yet; processing creates the next instance
// with the due date advanced by one period and leaves the source untouched.
type RecurringProcessor struct {
	expenses store.ExpenseStore
}

// NewRecurringProcessor creates a new recurring expense processor.
func NewRecurringProcessor(expenses store.ExpenseStore) *RecurringProcessor {
	return &RecurringProcessor{expenses: expenses}
}

// ProcessDueExpenses spawns the next occurrence for every recurring expense
// due on or before asOf. Failures on individual expenses are logged and
// skipped. Returns the number of expenses created.
func (p *RecurringProcessor) ProcessDueExpenses(ctx context.Context, asOf core.Date) (int, error) {
	if p.expenses == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.expenses.ListDueRecurring(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to list due recurring expenses: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring expenses",
		"total_due", len(due),
		"processing_date", asOf.String())

	processedCount := 0

	for _, src := range due {
		nextDue, err := NextDueDate(src.DueDate, src.Recurrence)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to advance recurring expense",
				"expense_id", src.ID,
				"recurrence", string(src.Recurrence),
				"error", err)
			continue
		}

		next := core.Expense{
			Name:              src.Name,
			Amount:            src.Amount,
			DueDate:           nextDue,
			Category:          src.Category,
			Recurrence:        src.Recurrence,
			Notes:             src.Notes,
			RecurringSourceID: src.ID,
		}

		created, err := p.expenses.CreateExpense(ctx, next)
		if err != nil {
			// A concurrent run may have spawned this occurrence first; the
			// spawn-once index rejects the duplicate and the next scan
			// skips the source.
			slog.ErrorContext(ctx, "Failed to create expense from recurring template",
				"source_id", src.ID,
				"name", src.Name,
				"error", err)
			continue
		}

		processedCount++
		slog.InfoContext(ctx, "Created expense from recurring template",
			"source_id", src.ID,
			"expense_id", created.ID,
			"due_date", created.DueDate.String(),
			"amount_cents", created.Amount.Cents,
			"recurrence", string(created.Recurrence))
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"processed", processedCount,
		"total_due", len(due))

	return processedCount, nil
}

// NextDueDate advances a due date by one recurrence period. One-time
// expenses never recur and report an error.
func NextDueDate(d core.Date, r core.Recurrence) (core.Date, error) {
	switch r {
	case core.Monthly:
		return addMonthsClamped(d, 1), nil
	case core.Quarterly:
		return addMonthsClamped(d, 3), nil
	case core.Yearly:
		return addMonthsClamped(d, 12), nil
	case core.OneTime:
		return core.Date{}, fmt.Errorf("one-time expense does not recur")
	default:
		return core.Date{}, fmt.Errorf("unknown recurrence: %s", r)
	}
}

// addMonthsClamped adds whole months, keeping the day of month where the
// target month has it. time.AddDate would normalize Jan 31 + 1 month into
// early March; billing dates want Feb 28 (or 29) instead.
func addMonthsClamped(d core.Date, months int) core.Date {
	year, month, day := d.Time.Date()
	month += time.Month(months)
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(year, int(month), day)
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jobledger/internal/core"
)

const expenseColumns = `id, name, amount_cents, due_date, is_paid, paid_date,
	category, recurrence, notes, recurring_source_id, created_at, updated_at`

func scanExpense(rows interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e                 core.Expense
		dueDate, paidDate string
	)
	err := rows.Scan(&e.ID, &e.Name, &e.Amount.Cents, &dueDate, &e.IsPaid,
		&paidDate, &e.Category, &e.Recurrence, &e.Notes,
		&e.RecurringSourceID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	if e.DueDate, err = parseDateCol(dueDate); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, err)
	}
	if e.PaidDate, err = parseDateCol(paidDate); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s paid date: %w", e.ID, err)
	}
	return e, nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = newID(e.ID)
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Amount.Cents, e.DueDate.String(), e.IsPaid,
		dateStr(e.PaidDate), string(e.Category), string(e.Recurrence),
		e.Notes, e.RecurringSourceID, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"name", e.Name,
		"due_date", e.DueDate.String(),
		"amount_cents", e.Amount.Cents)

	return e, nil
}

func (r *Repository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET name = ?, amount_cents = ?,
		due_date = ?, is_paid = ?, paid_date = ?, category = ?, recurrence = ?,
		notes = ?, updated_at = ? WHERE id = ?`,
		e.Name, e.Amount.Cents, e.DueDate.String(), e.IsPaid, dateStr(e.PaidDate),
		string(e.Category), string(e.Recurrence), e.Notes, e.UpdatedAt, e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Expense{}, core.ErrNotFound
	}

	slog.InfoContext(ctx, "Expense updated", "id", e.ID, "is_paid", e.IsPaid)
	return e, nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Allocations keep their snapshot of the bill, they just stop
	// pointing at the deleted row.
	if _, err := tx.ExecContext(ctx,
		`UPDATE goal_allocations SET expense_id = '' WHERE expense_id = ?`, id); err != nil {
		return fmt.Errorf("unlink allocations: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit expense delete: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

func (r *Repository) ListExpensesByDueRange(ctx context.Context, from, to core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE due_date >= ? AND due_date <= ?
		ORDER BY due_date, created_at`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses by due range: %w", err)
	}
	return collectExpenses(rows)
}

func (r *Repository) ListUnpaidExpenses(ctx context.Context, dueOnOrBefore core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE is_paid = 0 AND due_date <= ?
		ORDER BY due_date, created_at`, dueOnOrBefore.String())
	if err != nil {
		return nil, fmt.Errorf("list unpaid expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r *Repository) ListExpensesPaidInRange(ctx context.Context, from, to core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE is_paid = 1 AND paid_date >= ? AND paid_date <= ?
		ORDER BY paid_date, created_at`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list paid expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r *Repository) MarkExpensePaid(ctx context.Context, id string, paidOn core.Date) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET is_paid = 1, paid_date = ?, updated_at = ?
		WHERE id = ?`, paidOn.String(), time.Now().UTC(), id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("mark expense paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Expense{}, core.ErrNotFound
	}

	slog.InfoContext(ctx, "Expense marked paid", "id", id, "paid_date", paidOn.String())
	return r.GetExpense(ctx, id)
}

// ListDueRecurring returns recurring expenses due on or before the given
// date that have not spawned their next occurrence yet.
func (r *Repository) ListDueRecurring(ctx context.Context, asOf core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses e
		WHERE e.recurrence != 'one_time' AND e.due_date <= ?
		  AND NOT EXISTS (SELECT 1 FROM expenses s WHERE s.recurring_source_id = e.id)
		ORDER BY e.due_date, e.created_at`, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("list due recurring: %w", err)
	}
	return collectExpenses(rows)
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobledger/internal/core"

	"github.com/shopspring/decimal"
)

const goalColumns = `id, week_start, week_end, income_target_cents,
	actual_income_cents, notes, created_at, updated_at`

func scanGoal(rows interface{ Scan(...any) error }) (core.WeeklyGoal, error) {
	var (
		g                  core.WeeklyGoal
		weekStart, weekEnd string
	)
	err := rows.Scan(&g.ID, &weekStart, &weekEnd, &g.IncomeTarget.Cents,
		&g.ActualIncome.Cents, &g.Notes, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	if g.WeekStart, err = parseDateCol(weekStart); err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("goal %s: %w", g.ID, err)
	}
	if g.WeekEnd, err = parseDateCol(weekEnd); err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("goal %s week end: %w", g.ID, err)
	}
	return g, nil
}

func (r *Repository) CreateGoal(ctx context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error) {
	g.ID = newID(g.ID)
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO weekly_goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.WeekStart.String(), g.WeekEnd.String(), g.IncomeTarget.Cents,
		g.ActualIncome.Cents, g.Notes, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("insert goal: %w", err)
	}

	if err := insertAllocations(ctx, tx, g.ID, g.Allocations); err != nil {
		return core.WeeklyGoal{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("commit goal: %w", err)
	}

	slog.InfoContext(ctx, "Weekly goal saved",
		"id", g.ID,
		"week_start", g.WeekStart.String(),
		"target_cents", g.IncomeTarget.Cents)

	return g, nil
}

func insertAllocations(ctx context.Context, tx *sql.Tx, goalID string, bills []core.BillAllocation) error {
	for i, b := range bills {
		_, err := tx.ExecContext(ctx, `INSERT INTO goal_allocations
			(goal_id, expense_id, name, weekly_amount_cents, is_complete, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			goalID, b.ExpenseID, b.Name, b.WeeklyAmount.Cents, b.IsComplete, i)
		if err != nil {
			return fmt.Errorf("insert allocation %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repository) GetGoal(ctx context.Context, id string) (core.WeeklyGoal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM weekly_goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WeeklyGoal{}, core.ErrNotFound
	}
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("get goal: %w", err)
	}
	bills, err := r.loadAllocations(ctx, []string{id})
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	g.Allocations = bills[id]
	return g, nil
}

func (r *Repository) GetGoalByWeek(ctx context.Context, weekStart core.Date) (core.WeeklyGoal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM weekly_goals WHERE week_start = ?`, weekStart.String())
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WeeklyGoal{}, core.ErrNotFound
	}
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("get goal by week: %w", err)
	}
	bills, err := r.loadAllocations(ctx, []string{g.ID})
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	g.Allocations = bills[g.ID]
	return g, nil
}

func (r *Repository) UpdateGoal(ctx context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error) {
	g.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE weekly_goals SET week_start = ?, week_end = ?,
		income_target_cents = ?, actual_income_cents = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		g.WeekStart.String(), g.WeekEnd.String(), g.IncomeTarget.Cents,
		g.ActualIncome.Cents, g.Notes, g.UpdatedAt, g.ID)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.WeeklyGoal{}, core.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM goal_allocations WHERE goal_id = ?`, g.ID); err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("clear allocations: %w", err)
	}
	if err := insertAllocations(ctx, tx, g.ID, g.Allocations); err != nil {
		return core.WeeklyGoal{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("commit goal update: %w", err)
	}

	slog.InfoContext(ctx, "Weekly goal updated", "id", g.ID)
	return g, nil
}

func (r *Repository) DeleteGoal(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM goal_allocations WHERE goal_id = ?`, id); err != nil {
		return fmt.Errorf("delete allocations: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM weekly_goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit goal delete: %w", err)
	}

	slog.InfoContext(ctx, "Weekly goal deleted", "id", id)
	return nil
}

func (r *Repository) ListGoals(ctx context.Context, limit int) ([]core.WeeklyGoal, error) {
	if limit <= 0 {
		limit = 52
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM weekly_goals
		ORDER BY week_start DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.WeeklyGoal
	var ids []string
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	bills, err := r.loadAllocations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range goals {
		goals[i].Allocations = bills[goals[i].ID]
	}
	return goals, nil
}

func (r *Repository) ListGoalsByRange(ctx context.Context, from, to core.Date) ([]core.WeeklyGoal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM weekly_goals
		WHERE week_end >= ? AND week_start <= ? ORDER BY week_start`,
		from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list goals by range: %w", err)
	}
	defer rows.Close()

	var goals []core.WeeklyGoal
	var ids []string
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	bills, err := r.loadAllocations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range goals {
		goals[i].Allocations = bills[goals[i].ID]
	}
	return goals, nil
}

func (r *Repository) loadAllocations(ctx context.Context, goalIDs []string) (map[string][]core.BillAllocation, error) {
	out := make(map[string][]core.BillAllocation, len(goalIDs))
	if len(goalIDs) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(goalIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(goalIDs))
	for i, id := range goalIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT goal_id, expense_id, name, weekly_amount_cents, is_complete
		FROM goal_allocations WHERE goal_id IN (`+placeholders+`) ORDER BY goal_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var goalID string
		var b core.BillAllocation
		if err := rows.Scan(&goalID, &b.ExpenseID, &b.Name, &b.WeeklyAmount.Cents, &b.IsComplete); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out[goalID] = append(out[goalID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return out, nil
}

func (r *Repository) GetProfile(ctx context.Context) (core.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, role, commission_rate,
		keeps_cash, keeps_check, updated_at FROM profiles ORDER BY id LIMIT 1`)

	var p core.Profile
	var rate string
	err := row.Scan(&p.ID, &p.Name, &p.Role, &rate, &p.KeepsCash, &p.KeepsCheck, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, core.ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if p.CommissionRate, err = decimal.NewFromString(rate); err != nil {
		return core.Profile{}, fmt.Errorf("profile commission rate %q: %w", rate, err)
	}
	return p, nil
}

func (r *Repository) SaveProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	p.ID = newID(p.ID)
	p.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `INSERT INTO profiles (id, name, role, commission_rate, keeps_cash, keeps_check, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role,
			commission_rate = excluded.commission_rate, keeps_cash = excluded.keeps_cash,
			keeps_check = excluded.keeps_check, updated_at = excluded.updated_at`,
		p.ID, p.Name, string(p.Role), p.CommissionRate.String(),
		p.KeepsCash, p.KeepsCheck, p.UpdatedAt)
	if err != nil {
		return core.Profile{}, fmt.Errorf("save profile: %w", err)
	}

	slog.InfoContext(ctx, "Profile saved", "id", p.ID, "role", string(p.Role))
	return p, nil
}

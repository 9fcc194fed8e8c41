// Package postgres is the PostgreSQL-backed store, for deployments that
// outgrow the single SQLite file.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/store"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db *sql.DB
}

var (
	_ store.JobStore     = (*Repository)(nil)
	_ store.ExpenseStore = (*Repository)(nil)
	_ store.GoalStore    = (*Repository)(nil)
	_ store.ProfileStore = (*Repository)(nil)
	_ store.SyncQueue    = (*Repository)(nil)
)

func New(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := RunMigrations(databaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// nullDate maps optional dates onto nullable DATE columns.
func nullDate(d core.Date) sql.NullTime {
	if d.IsEmpty() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time, Valid: true}
}

func fromNullDate(nt sql.NullTime) core.Date {
	if !nt.Valid {
		return core.Date{}
	}
	return core.DateOf(nt.Time)
}

const jobColumns = `id, job_date, company_name, address, city, yards, is_paid,
	payment_method, amount_cents, check_number, notes, payment_to_me,
	invoice_number, invoice_date, invoice_due_date, contact_name,
	contact_email, contact_phone, created_at, updated_at`

func scanJob(rows interface{ Scan(...any) error }) (core.Job, error) {
	var (
		j               core.Job
		jobDate         time.Time
		invDate, invDue sql.NullTime
		invNumber       string
		cName, cMail    string
		cTel            string
	)
	err := rows.Scan(&j.ID, &jobDate, &j.CompanyName, &j.Address, &j.City,
		&j.Yards, &j.IsPaid, &j.PaymentMethod, &j.Amount.Cents,
		&j.CheckNumber, &j.Notes, &j.PaymentToMe,
		&invNumber, &invDate, &invDue, &cName, &cMail, &cTel,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return core.Job{}, err
	}
	j.Date = core.DateOf(jobDate)
	if invNumber != "" || invDate.Valid || invDue.Valid || cName != "" || cMail != "" || cTel != "" {
		j.Billing = &core.BillingDetails{
			InvoiceNumber: invNumber,
			InvoiceDate:   fromNullDate(invDate),
			DueDate:       fromNullDate(invDue),
			ContactName:   cName,
			ContactEmail:  cMail,
			ContactPhone:  cTel,
		}
	}
	return j, nil
}

func (r *Repository) CreateJob(ctx context.Context, j core.Job) (core.Job, error) {
	j.ID = newID(j.ID)
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var invNum, cName, cMail, cTel string
	var invDate, invDue sql.NullTime
	if j.Billing != nil {
		invNum = j.Billing.InvoiceNumber
		invDate = nullDate(j.Billing.InvoiceDate)
		invDue = nullDate(j.Billing.DueDate)
		cName, cMail, cTel = j.Billing.ContactName, j.Billing.ContactEmail, j.Billing.ContactPhone
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		j.ID, j.Date.Time, j.CompanyName, j.Address, j.City, j.Yards,
		j.IsPaid, string(j.PaymentMethod), j.Amount.Cents, j.CheckNumber,
		j.Notes, j.PaymentToMe, invNum, invDate, invDue, cName, cMail, cTel,
		j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return core.Job{}, fmt.Errorf("insert job: %w", err)
	}

	if err := insertLineItems(ctx, tx, j.ID, j.LineItems); err != nil {
		return core.Job{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Job{}, fmt.Errorf("commit job: %w", err)
	}

	slog.InfoContext(ctx, "Job saved",
		"id", j.ID,
		"date", j.Date.String(),
		"address", j.Address,
		"amount_cents", j.Amount.Cents)

	return j, nil
}

func insertLineItems(ctx context.Context, tx *sql.Tx, jobID string, items []core.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO job_line_items (job_id, description, amount_cents, position)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("prepare line item insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, jobID, item.Description, item.Amount.Cents, i); err != nil {
			return fmt.Errorf("insert line item %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repository) GetJob(ctx context.Context, id string) (core.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Job{}, core.ErrNotFound
	}
	if err != nil {
		return core.Job{}, fmt.Errorf("get job: %w", err)
	}
	items, err := r.loadLineItems(ctx, []string{id})
	if err != nil {
		return core.Job{}, err
	}
	j.LineItems = items[id]
	return j, nil
}

func (r *Repository) UpdateJob(ctx context.Context, j core.Job) (core.Job, error) {
	j.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var invNum, cName, cMail, cTel string
	var invDate, invDue sql.NullTime
	if j.Billing != nil {
		invNum = j.Billing.InvoiceNumber
		invDate = nullDate(j.Billing.InvoiceDate)
		invDue = nullDate(j.Billing.DueDate)
		cName, cMail, cTel = j.Billing.ContactName, j.Billing.ContactEmail, j.Billing.ContactPhone
	}

	res, err := tx.ExecContext(ctx, `UPDATE jobs SET job_date = $1, company_name = $2,
		address = $3, city = $4, yards = $5, is_paid = $6, payment_method = $7,
		amount_cents = $8, check_number = $9, notes = $10, payment_to_me = $11,
		invoice_number = $12, invoice_date = $13, invoice_due_date = $14,
		contact_name = $15, contact_email = $16, contact_phone = $17, updated_at = $18
		WHERE id = $19`,
		j.Date.Time, j.CompanyName, j.Address, j.City, j.Yards, j.IsPaid,
		string(j.PaymentMethod), j.Amount.Cents, j.CheckNumber, j.Notes,
		j.PaymentToMe, invNum, invDate, invDue, cName, cMail, cTel,
		j.UpdatedAt, j.ID)
	if err != nil {
		return core.Job{}, fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Job{}, core.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_line_items WHERE job_id = $1`, j.ID); err != nil {
		return core.Job{}, fmt.Errorf("clear line items: %w", err)
	}
	if err := insertLineItems(ctx, tx, j.ID, j.LineItems); err != nil {
		return core.Job{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Job{}, fmt.Errorf("commit job update: %w", err)
	}

	slog.InfoContext(ctx, "Job updated", "id", j.ID, "is_paid", j.IsPaid)
	return j, nil
}

func (r *Repository) DeleteJob(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Line items go with the job via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE job_id = $1 AND status = 'pending' AND operation = 'upsert'`, id); err != nil {
		return fmt.Errorf("clear pending sync: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job delete: %w", err)
	}

	slog.InfoContext(ctx, "Job deleted", "id", id)
	return nil
}

func (r *Repository) ListJobsByRange(ctx context.Context, from, to core.Date) ([]core.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE job_date >= $1 AND job_date <= $2
		ORDER BY job_date, created_at`, from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("list jobs by range: %w", err)
	}
	return r.collectJobs(ctx, rows)
}

func (r *Repository) ListUnpaidJobs(ctx context.Context) ([]core.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE NOT is_paid ORDER BY job_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list unpaid jobs: %w", err)
	}
	return r.collectJobs(ctx, rows)
}

func (r *Repository) SearchJobs(ctx context.Context, query string) ([]core.Job, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE company_name ILIKE $1 OR address ILIKE $1 OR city ILIKE $1
		ORDER BY job_date DESC, created_at DESC LIMIT 200`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search jobs: %w", err)
	}
	return r.collectJobs(ctx, rows)
}

func (r *Repository) collectJobs(ctx context.Context, rows *sql.Rows) ([]core.Job, error) {
	defer rows.Close()
	var jobs []core.Job
	var ids []string
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
		ids = append(ids, j.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	items, err := r.loadLineItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i].LineItems = items[jobs[i].ID]
	}
	core.AssignSequenceNumbers(jobs)
	return jobs, nil
}

func (r *Repository) loadLineItems(ctx context.Context, jobIDs []string) (map[string][]core.LineItem, error) {
	out := make(map[string][]core.LineItem, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(jobIDs))
	args := make([]any, len(jobIDs))
	for i, id := range jobIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT job_id, description, amount_cents
		FROM job_line_items WHERE job_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY job_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var jobID string
		var item core.LineItem
		if err := rows.Scan(&jobID, &item.Description, &item.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		out[jobID] = append(out[jobID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}
	return out, nil
}

const expenseColumns = `id, name, amount_cents, due_date, is_paid, paid_date,
	category, recurrence, notes, recurring_source_id, created_at, updated_at`

func scanExpense(rows interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e        core.Expense
		dueDate  time.Time
		paidDate sql.NullTime
	)
	err := rows.Scan(&e.ID, &e.Name, &e.Amount.Cents, &dueDate, &e.IsPaid,
		&paidDate, &e.Category, &e.Recurrence, &e.Notes,
		&e.RecurringSourceID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	e.DueDate = core.DateOf(dueDate)
	e.PaidDate = fromNullDate(paidDate)
	return e, nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = newID(e.ID)
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Name, e.Amount.Cents, e.DueDate.Time, e.IsPaid,
		nullDate(e.PaidDate), string(e.Category), string(e.Recurrence),
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
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
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

	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET name = $1, amount_cents = $2,
		due_date = $3, is_paid = $4, paid_date = $5, category = $6, recurrence = $7,
		notes = $8, updated_at = $9 WHERE id = $10`,
		e.Name, e.Amount.Cents, e.DueDate.Time, e.IsPaid, nullDate(e.PaidDate),
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

	if _, err := tx.ExecContext(ctx,
		`UPDATE goal_allocations SET expense_id = '' WHERE expense_id = $1`, id); err != nil {
		return fmt.Errorf("unlink allocations: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
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
		WHERE due_date >= $1 AND due_date <= $2
		ORDER BY due_date, created_at`, from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("list expenses by due range: %w", err)
	}
	return collectExpenses(rows)
}

func (r *Repository) ListUnpaidExpenses(ctx context.Context, dueOnOrBefore core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE NOT is_paid AND due_date <= $1
		ORDER BY due_date, created_at`, dueOnOrBefore.Time)
	if err != nil {
		return nil, fmt.Errorf("list unpaid expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r *Repository) ListExpensesPaidInRange(ctx context.Context, from, to core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE is_paid AND paid_date >= $1 AND paid_date <= $2
		ORDER BY paid_date, created_at`, from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("list paid expenses: %w", err)
	}
	return collectExpenses(rows)
}

func (r *Repository) MarkExpensePaid(ctx context.Context, id string, paidOn core.Date) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET is_paid = TRUE, paid_date = $1, updated_at = $2
		WHERE id = $3`, paidOn.Time, time.Now().UTC(), id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("mark expense paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Expense{}, core.ErrNotFound
	}

	slog.InfoContext(ctx, "Expense marked paid", "id", id, "paid_date", paidOn.String())
	return r.GetExpense(ctx, id)
}

func (r *Repository) ListDueRecurring(ctx context.Context, asOf core.Date) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses e
		WHERE e.recurrence <> 'one_time' AND e.due_date <= $1
		  AND NOT EXISTS (SELECT 1 FROM expenses s WHERE s.recurring_source_id = e.id)
		ORDER BY e.due_date, e.created_at`, asOf.Time)
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

const goalColumns = `id, week_start, week_end, income_target_cents,
	actual_income_cents, notes, created_at, updated_at`

func scanGoal(rows interface{ Scan(...any) error }) (core.WeeklyGoal, error) {
	var (
		g                  core.WeeklyGoal
		weekStart, weekEnd time.Time
	)
	err := rows.Scan(&g.ID, &weekStart, &weekEnd, &g.IncomeTarget.Cents,
		&g.ActualIncome.Cents, &g.Notes, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return core.WeeklyGoal{}, err
	}
	g.WeekStart = core.DateOf(weekStart)
	g.WeekEnd = core.DateOf(weekEnd)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID, g.WeekStart.Time, g.WeekEnd.Time, g.IncomeTarget.Cents,
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
	if len(bills) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO goal_allocations
		(goal_id, expense_id, name, weekly_amount_cents, is_complete, position)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare allocation insert: %w", err)
	}
	defer stmt.Close()

	for i, b := range bills {
		if _, err := stmt.ExecContext(ctx, goalID, b.ExpenseID, b.Name, b.WeeklyAmount.Cents, b.IsComplete, i); err != nil {
			return fmt.Errorf("insert allocation %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repository) GetGoal(ctx context.Context, id string) (core.WeeklyGoal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM weekly_goals WHERE id = $1`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WeeklyGoal{}, core.ErrNotFound
	}
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("get goal: %w", err)
	}
	return r.attachAllocations(ctx, g)
}

func (r *Repository) GetGoalByWeek(ctx context.Context, weekStart core.Date) (core.WeeklyGoal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM weekly_goals WHERE week_start = $1`, weekStart.Time)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WeeklyGoal{}, core.ErrNotFound
	}
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("get goal by week: %w", err)
	}
	return r.attachAllocations(ctx, g)
}

func (r *Repository) attachAllocations(ctx context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT expense_id, name, weekly_amount_cents, is_complete
		FROM goal_allocations WHERE goal_id = $1 ORDER BY position`, g.ID)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("load allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b core.BillAllocation
		if err := rows.Scan(&b.ExpenseID, &b.Name, &b.WeeklyAmount.Cents, &b.IsComplete); err != nil {
			return core.WeeklyGoal{}, fmt.Errorf("scan allocation: %w", err)
		}
		g.Allocations = append(g.Allocations, b)
	}
	if err := rows.Err(); err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("iterate allocations: %w", err)
	}
	return g, nil
}

func (r *Repository) UpdateGoal(ctx context.Context, g core.WeeklyGoal) (core.WeeklyGoal, error) {
	g.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE weekly_goals SET week_start = $1, week_end = $2,
		income_target_cents = $3, actual_income_cents = $4, notes = $5, updated_at = $6
		WHERE id = $7`,
		g.WeekStart.Time, g.WeekEnd.Time, g.IncomeTarget.Cents,
		g.ActualIncome.Cents, g.Notes, g.UpdatedAt, g.ID)
	if err != nil {
		return core.WeeklyGoal{}, fmt.Errorf("update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.WeeklyGoal{}, core.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM goal_allocations WHERE goal_id = $1`, g.ID); err != nil {
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM weekly_goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Weekly goal deleted", "id", id)
	return nil
}

func (r *Repository) ListGoals(ctx context.Context, limit int) ([]core.WeeklyGoal, error) {
	if limit <= 0 {
		limit = 52
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM weekly_goals
		ORDER BY week_start DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.WeeklyGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	for i := range goals {
		g, err := r.attachAllocations(ctx, goals[i])
		if err != nil {
			return nil, err
		}
		goals[i] = g
	}
	return goals, nil
}

func (r *Repository) ListGoalsByRange(ctx context.Context, from, to core.Date) ([]core.WeeklyGoal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM weekly_goals
		WHERE week_end >= $1 AND week_start <= $2 ORDER BY week_start`,
		from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("list goals by range: %w", err)
	}
	defer rows.Close()

	var goals []core.WeeklyGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	for i := range goals {
		g, err := r.attachAllocations(ctx, goals[i])
		if err != nil {
			return nil, err
		}
		goals[i] = g
	}
	return goals, nil
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role,
			commission_rate = EXCLUDED.commission_rate, keeps_cash = EXCLUDED.keeps_cash,
			keeps_check = EXCLUDED.keeps_check, updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, string(p.Role), p.CommissionRate.String(),
		p.KeepsCash, p.KeepsCheck, p.UpdatedAt)
	if err != nil {
		return core.Profile{}, fmt.Errorf("save profile: %w", err)
	}

	slog.InfoContext(ctx, "Profile saved", "id", p.ID, "role", string(p.Role))
	return p, nil
}

func (r *Repository) EnqueueSync(ctx context.Context, req store.SyncRequest) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sync_queue (job_id, operation, job_date, status, attempts, last_error)
		VALUES ($1, $2, $3, 'pending', 0, '')`, req.JobID, string(req.Operation), nullDate(req.JobDate))
	if err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

func (r *Repository) PendingSyncItems(ctx context.Context, limit int) ([]store.SyncItem, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, job_id, operation, job_date, attempts, last_error, created_at
		FROM sync_queue WHERE status = 'pending' ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync items: %w", err)
	}
	defer rows.Close()

	var items []store.SyncItem
	for rows.Next() {
		var it store.SyncItem
		var jobDate sql.NullTime
		if err := rows.Scan(&it.ID, &it.JobID, &it.Operation, &jobDate, &it.Attempts, &it.LastError, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		it.JobDate = fromNullDate(jobDate)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync items: %w", err)
	}
	return items, nil
}

func (r *Repository) MarkSynced(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'synced', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) RecordSyncError(ctx context.Context, id int64, syncErr string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `UPDATE sync_queue
		SET attempts = attempts + 1, last_error = $1, updated_at = NOW()
		WHERE id = $2 RETURNING attempts`, syncErr, id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record sync error: %w", err)
	}
	return attempts, nil
}

func (r *Repository) MarkSyncFailed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'failed', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark sync failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = 'synced' AND updated_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete synced items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted items: %w", err)
	}
	return n, nil
}

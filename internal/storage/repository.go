package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/store"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository is the SQLite-backed store. One file on disk, WAL mode,
// busy timeout for the worker processes sharing it.
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

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// _pragma applies per connection, so the settings survive pool churn.
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := RunMigrations(dbPath); err != nil {
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

// Ping verifies the database connection is alive.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// dateStr renders a date for a TEXT column, empty string for unset
// optional dates.
func dateStr(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.String()
}

func parseDateCol(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

const jobColumns = `id, job_date, company_name, address, city, yards, is_paid,
	payment_method, amount_cents, check_number, notes, payment_to_me,
	invoice_number, invoice_date, invoice_due_date, contact_name,
	contact_email, contact_phone, created_at, updated_at`

func scanJob(rows interface{ Scan(...any) error }) (core.Job, error) {
	var (
		j                             core.Job
		jobDate, invDate, invDue      string
		invNumber, cName, cMail, cTel string
	)
	err := rows.Scan(&j.ID, &jobDate, &j.CompanyName, &j.Address, &j.City,
		&j.Yards, &j.IsPaid, &j.PaymentMethod, &j.Amount.Cents,
		&j.CheckNumber, &j.Notes, &j.PaymentToMe,
		&invNumber, &invDate, &invDue, &cName, &cMail, &cTel,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return core.Job{}, err
	}
	if j.Date, err = parseDateCol(jobDate); err != nil {
		return core.Job{}, fmt.Errorf("job %s: %w", j.ID, err)
	}
	if invNumber != "" || invDate != "" || invDue != "" || cName != "" || cMail != "" || cTel != "" {
		b := &core.BillingDetails{
			InvoiceNumber: invNumber,
			ContactName:   cName,
			ContactEmail:  cMail,
			ContactPhone:  cTel,
		}
		if b.InvoiceDate, err = parseDateCol(invDate); err != nil {
			return core.Job{}, fmt.Errorf("job %s invoice date: %w", j.ID, err)
		}
		if b.DueDate, err = parseDateCol(invDue); err != nil {
			return core.Job{}, fmt.Errorf("job %s invoice due date: %w", j.ID, err)
		}
		j.Billing = b
	}
	return j, nil
}

func billingCols(j core.Job) (string, string, string, string, string, string) {
	if j.Billing == nil {
		return "", "", "", "", "", ""
	}
	return j.Billing.InvoiceNumber, dateStr(j.Billing.InvoiceDate), dateStr(j.Billing.DueDate),
		j.Billing.ContactName, j.Billing.ContactEmail, j.Billing.ContactPhone
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

	invNum, invDate, invDue, cName, cMail, cTel := billingCols(j)
	_, err = tx.ExecContext(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Date.String(), j.CompanyName, j.Address, j.City, j.Yards,
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
	for i, item := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO job_line_items (job_id, description, amount_cents, position) VALUES (?, ?, ?, ?)`,
			jobID, item.Description, item.Amount.Cents, i)
		if err != nil {
			return fmt.Errorf("insert line item %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repository) GetJob(ctx context.Context, id string) (core.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
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

	invNum, invDate, invDue, cName, cMail, cTel := billingCols(j)
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET job_date = ?, company_name = ?,
		address = ?, city = ?, yards = ?, is_paid = ?, payment_method = ?,
		amount_cents = ?, check_number = ?, notes = ?, payment_to_me = ?,
		invoice_number = ?, invoice_date = ?, invoice_due_date = ?,
		contact_name = ?, contact_email = ?, contact_phone = ?, updated_at = ?
		WHERE id = ?`,
		j.Date.String(), j.CompanyName, j.Address, j.City, j.Yards, j.IsPaid,
		string(j.PaymentMethod), j.Amount.Cents, j.CheckNumber, j.Notes,
		j.PaymentToMe, invNum, invDate, invDue, cName, cMail, cTel,
		j.UpdatedAt, j.ID)
	if err != nil {
		return core.Job{}, fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Job{}, core.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_line_items WHERE job_id = ?`, j.ID); err != nil {
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_line_items WHERE job_id = ?`, id); err != nil {
		return fmt.Errorf("delete line items: %w", err)
	}
	// Stale pending exports for a job that no longer exists.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE job_id = ? AND status = 'pending' AND operation = 'upsert'`, id); err != nil {
		return fmt.Errorf("clear pending sync: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
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
		WHERE job_date >= ? AND job_date <= ?
		ORDER BY job_date, created_at`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list jobs by range: %w", err)
	}
	return r.collectJobs(ctx, rows)
}

func (r *Repository) ListUnpaidJobs(ctx context.Context) ([]core.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE is_paid = 0 ORDER BY job_date, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list unpaid jobs: %w", err)
	}
	return r.collectJobs(ctx, rows)
}

func (r *Repository) SearchJobs(ctx context.Context, query string) ([]core.Job, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE LOWER(company_name) LIKE ? OR LOWER(address) LIKE ? OR LOWER(city) LIKE ?
		ORDER BY job_date DESC, created_at DESC LIMIT 200`, pattern, pattern, pattern)
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
	placeholders := strings.Repeat("?,", len(jobIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(jobIDs))
	for i, id := range jobIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `SELECT job_id, description, amount_cents
		FROM job_line_items WHERE job_id IN (`+placeholders+`) ORDER BY job_id, position`, args...)
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

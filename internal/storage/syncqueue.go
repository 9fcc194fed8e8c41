package storage

import (
	"context"
	"fmt"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/store"
)

func (r *Repository) EnqueueSync(ctx context.Context, req store.SyncRequest) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO sync_queue (job_id, operation, job_date, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, '', ?, ?)`,
		req.JobID, string(req.Operation), dateStr(req.JobDate), now, now)
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
		FROM sync_queue WHERE status = 'pending' ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync items: %w", err)
	}
	defer rows.Close()

	var items []store.SyncItem
	for rows.Next() {
		var it store.SyncItem
		var jobDate string
		if err := rows.Scan(&it.ID, &it.JobID, &it.Operation, &jobDate, &it.Attempts, &it.LastError, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		if it.JobDate, err = parseDateCol(jobDate); err != nil {
			return nil, fmt.Errorf("sync item %d: %w", it.ID, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync items: %w", err)
	}
	return items, nil
}

func (r *Repository) MarkSynced(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'synced', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// RecordSyncError bumps the attempt counter and stores the error text.
// It returns the new attempt count so callers can decide when to give up.
func (r *Repository) RecordSyncError(ctx context.Context, id int64, syncErr string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		syncErr, time.Now().UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("record sync error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, core.ErrNotFound
	}

	var attempts int
	if err := tx.QueryRowContext(ctx, `SELECT attempts FROM sync_queue WHERE id = ?`, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("read attempt count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sync error: %w", err)
	}
	return attempts, nil
}

func (r *Repository) MarkSyncFailed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'failed', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
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
		`DELETE FROM sync_queue WHERE status = 'synced' AND updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete synced items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted items: %w", err)
	}
	return n, nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jobledger/internal/amqp"
	"jobledger/internal/core"
	"jobledger/internal/sheets"
	"jobledger/internal/store"
)

// LedgerWorker exports jobs to the ledger. AMQP messages are wake-up
// nudges; the sync queue rows are authoritative. They survive broker
// loss and carry the job date a delete needs to find its year tab.
type LedgerWorker struct {
	jobs       store.JobStore
	queue      store.SyncQueue
	exporter   sheets.LedgerExporter
	batchSize  int
	maxRetries int
}

func NewLedgerWorker(jobs store.JobStore, queue store.SyncQueue, exporter sheets.LedgerExporter, batchSize int) *LedgerWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &LedgerWorker{
		jobs:       jobs,
		queue:      queue,
		exporter:   exporter,
		batchSize:  batchSize,
		maxRetries: 3,
	}
}

// HandleSyncMessage settles every queued export for the job named in the
// message. Returning an error requeues the message; rows that keep
// failing are marked failed and drop out of the pending scan, which ends
// the redelivery loop.
func (w *LedgerWorker) HandleSyncMessage(ctx context.Context, msg *amqp.JobSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"job_id", msg.JobID,
		"operation", msg.Operation)

	items, err := w.queue.PendingSyncItems(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}

	matched := 0
	for _, item := range items {
		if item.JobID != msg.JobID {
			continue
		}
		matched++
		if err := w.processItem(ctx, item); err != nil {
			return err
		}
	}

	if matched == 0 {
		// Already settled by the startup catch-up or a previous delivery.
		slog.InfoContext(ctx, "No pending exports for job", "job_id", msg.JobID)
	}

	return nil
}

// ProcessPendingJobs drains pending queue rows regardless of messages.
// Runs at worker startup to recover exports whose messages were lost
// while the worker was down.
func (w *LedgerWorker) ProcessPendingJobs(ctx context.Context) error {
	items, err := w.queue.PendingSyncItems(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending exports for startup check: %w", err)
	}

	if len(items) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(items))

	successCount := 0
	errorCount := 0

	for _, item := range items {
		if err := w.processItem(ctx, item); err != nil {
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(items),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

// processItem runs one queued export and settles the row: synced on
// success, failed once the attempts are used up.
func (w *LedgerWorker) processItem(ctx context.Context, item store.SyncItem) error {
	var exportErr error
	switch item.Operation {
	case store.SyncOpUpsert:
		exportErr = w.exportJob(ctx, item)
	case store.SyncOpDelete:
		exportErr = w.removeJob(ctx, item)
	default:
		exportErr = fmt.Errorf("unknown operation: %s", item.Operation)
	}

	if exportErr != nil {
		attempts, err := w.queue.RecordSyncError(ctx, item.ID, exportErr.Error())
		if err != nil {
			slog.ErrorContext(ctx, "Failed to record export error",
				"id", item.ID, "error", err)
			return exportErr
		}
		if attempts >= w.maxRetries {
			if err := w.queue.MarkSyncFailed(ctx, item.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark export as failed",
					"id", item.ID, "error", err)
			}
			slog.ErrorContext(ctx, "Export failed permanently after max retries",
				"id", item.ID,
				"job_id", item.JobID,
				"attempts", attempts)
		}
		return exportErr
	}

	if err := w.queue.MarkSynced(ctx, item.ID); err != nil {
		// The export itself worked; don't fail the message over bookkeeping.
		slog.ErrorContext(ctx, "Failed to mark export as synced",
			"id", item.ID, "error", err)
	}

	return nil
}

func (w *LedgerWorker) exportJob(ctx context.Context, item store.SyncItem) error {
	j, err := w.jobs.GetJob(ctx, item.JobID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after the row was queued; the delete row cleans up.
		slog.InfoContext(ctx, "Skipping export of deleted job", "job_id", item.JobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get job %s: %w", item.JobID, err)
	}

	ref, err := w.exporter.UpsertJob(ctx, j)
	if err != nil {
		return fmt.Errorf("export to ledger: %w", err)
	}

	slog.InfoContext(ctx, "Exported job to ledger",
		"job_id", j.ID,
		"ledger_ref", ref,
		"company", j.CompanyName,
		"amount_cents", j.Amount.Cents)

	return nil
}

func (w *LedgerWorker) removeJob(ctx context.Context, item store.SyncItem) error {
	if err := w.exporter.RemoveJob(ctx, item.JobID, item.JobDate); err != nil {
		return fmt.Errorf("remove from ledger: %w", err)
	}

	slog.InfoContext(ctx, "Removed job from ledger",
		"job_id", item.JobID,
		"job_year", item.JobDate.Year())

	return nil
}

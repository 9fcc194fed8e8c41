package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jobledger/internal/core"
	"jobledger/internal/sheets"
	"jobledger/internal/store"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum retry attempts before marking as failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor drains the sync queue into the ledger. It is the
// in-process fallback for deployments without a message broker; the
// queue rows it consumes are the same ones the AMQP worker would.
type SyncProcessor struct {
	queue    store.SyncQueue
	jobs     store.JobStore
	exporter sheets.LedgerExporter
	config   SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(
	queue store.SyncQueue,
	jobs store.JobStore,
	exporter sheets.LedgerExporter,
	config SyncProcessorConfig,
) *SyncProcessor {
	return &SyncProcessor{
		queue:    queue,
		jobs:     jobs,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	if p.exporter == nil {
		return fmt.Errorf("sync processor requires a ledger exporter")
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Signal stop
	close(p.stopCh)

	// Wait for completion or context cancellation
	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main processing loop
func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Process immediately on startup
	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// processBatch processes a single batch of pending items
func (p *SyncProcessor) processBatch(ctx context.Context) {
	items, err := p.queue.PendingSyncItems(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch pending sync items", "error", err)
		return
	}

	if len(items) == 0 {
		return
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	for _, item := range items {
		// Check if we should stop
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		var processErr error
		switch item.Operation {
		case store.SyncOpUpsert:
			processErr = p.processUpsertItem(ctx, item)
		case store.SyncOpDelete:
			processErr = p.processDeleteItem(ctx, item)
		default:
			processErr = fmt.Errorf("unknown operation: %s", item.Operation)
		}

		if processErr != nil {
			p.handleFailure(ctx, item, processErr)
		} else {
			p.handleSuccess(ctx, item)
		}
	}
}

// processUpsertItem writes a job's row to the ledger.
func (p *SyncProcessor) processUpsertItem(ctx context.Context, item store.SyncItem) error {
	j, err := p.jobs.GetJob(ctx, item.JobID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted after this row was queued; the delete row that follows
		// will clean up the ledger.
		slog.InfoContext(ctx, "Skipping export of deleted job", "job_id", item.JobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get job %s: %w", item.JobID, err)
	}

	ref, err := p.exporter.UpsertJob(ctx, j)
	if err != nil {
		return fmt.Errorf("export to ledger: %w", err)
	}

	slog.InfoContext(ctx, "Exported job to ledger",
		"job_id", item.JobID,
		"ledger_ref", ref)

	return nil
}

// processDeleteItem removes a job's row from the ledger. The job date
// stored on the queue item locates the year tab; the local row is gone.
func (p *SyncProcessor) processDeleteItem(ctx context.Context, item store.SyncItem) error {
	if err := p.exporter.RemoveJob(ctx, item.JobID, item.JobDate); err != nil {
		return fmt.Errorf("remove from ledger: %w", err)
	}

	slog.InfoContext(ctx, "Removed job from ledger", "job_id", item.JobID)

	return nil
}

// handleSuccess marks an item as synced
func (p *SyncProcessor) handleSuccess(ctx context.Context, item store.SyncItem) {
	if err := p.queue.MarkSynced(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark item synced",
			"id", item.ID, "error", err)
	}
}

// handleFailure records a failed attempt and gives up after MaxRetries.
func (p *SyncProcessor) handleFailure(ctx context.Context, item store.SyncItem, processErr error) {
	slog.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		"operation", string(item.Operation),
		"attempt", item.Attempts+1,
		"error", processErr)

	attempts, err := p.queue.RecordSyncError(ctx, item.ID, processErr.Error())
	if err != nil {
		slog.ErrorContext(ctx, "Failed to record sync error",
			"id", item.ID, "error", err)
		return
	}

	if attempts >= p.config.MaxRetries {
		if err := p.queue.MarkSyncFailed(ctx, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark sync as failed",
				"id", item.ID, "error", err)
		}

		slog.ErrorContext(ctx, "Sync item failed permanently after max retries",
			"id", item.ID,
			"job_id", item.JobID,
			"attempts", attempts)
	}
}

// cleanupCompleted removes old synced items
func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	removed, err := p.queue.DeleteSyncedBefore(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clean up synced items", "error", err)
		return
	}
	if removed > 0 {
		slog.DebugContext(ctx, "Cleaned up synced items", "removed", removed)
	}
}

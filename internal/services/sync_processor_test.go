package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobledger/internal/core"
	memstore "jobledger/internal/memory"
	memledger "jobledger/internal/sheets/memory"
	"jobledger/internal/store"
)

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.CleanupInterval != 1*time.Hour {
		t.Errorf("expected CleanupInterval 1h, got %v", config.CleanupInterval)
	}
	if config.CleanupAge != 24*time.Hour {
		t.Errorf("expected CleanupAge 24h, got %v", config.CleanupAge)
	}
}

func TestSyncProcessor_IsRunning(t *testing.T) {
	processor := NewSyncProcessor(nil, nil, nil, DefaultSyncProcessorConfig())

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestSyncProcessor_RequiresExporter(t *testing.T) {
	s := memstore.New()
	processor := NewSyncProcessor(s, s, nil, DefaultSyncProcessorConfig())

	if err := processor.Start(context.Background()); err == nil {
		t.Error("expected error when starting without an exporter")
	}
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	s := memstore.New()
	ledger := memledger.New()
	processor := NewSyncProcessor(s, s, ledger, DefaultSyncProcessorConfig())

	ctx := context.Background()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer processor.Stop(ctx)

	if !processor.IsRunning() {
		t.Error("processor should be running after Start")
	}
	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	processor := NewSyncProcessor(nil, nil, nil, DefaultSyncProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestProcessBatch_UpsertThenDelete(t *testing.T) {
	s := memstore.New()
	ledger := memledger.New()
	processor := NewSyncProcessor(s, s, ledger, DefaultSyncProcessorConfig())
	ctx := context.Background()

	j, err := s.CreateJob(ctx, core.Job{
		Date:          core.NewDate(2025, 5, 12),
		CompanyName:   "Hargrove Concrete",
		Address:       "1420 Quarry Rd",
		PaymentMethod: core.Check,
		Amount:        core.Money{Cents: 85000},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := s.EnqueueSync(ctx, store.SyncRequest{
		JobID: j.ID, Operation: store.SyncOpUpsert, JobDate: j.Date,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	processor.processBatch(ctx)

	if got := ledger.Exported(2025); len(got) != 1 || got[0].ID != j.ID {
		t.Fatalf("expected job in ledger, got %+v", got)
	}
	pending, _ := s.PendingSyncItems(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected empty queue after export, got %d items", len(pending))
	}

	if err := s.EnqueueSync(ctx, store.SyncRequest{
		JobID: j.ID, Operation: store.SyncOpDelete, JobDate: j.Date,
	}); err != nil {
		t.Fatalf("enqueue delete: %v", err)
	}
	processor.processBatch(ctx)

	if got := ledger.Exported(2025); len(got) != 0 {
		t.Fatalf("expected empty ledger after delete, got %+v", got)
	}
}

func TestProcessBatch_SkipsDeletedJob(t *testing.T) {
	s := memstore.New()
	ledger := memledger.New()
	processor := NewSyncProcessor(s, s, ledger, DefaultSyncProcessorConfig())
	ctx := context.Background()

	// Upsert queued for a job that no longer exists locally. The export
	// is pointless, not an error.
	if err := s.EnqueueSync(ctx, store.SyncRequest{
		JobID: "gone", Operation: store.SyncOpUpsert, JobDate: core.NewDate(2025, 5, 12),
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	processor.processBatch(ctx)

	pending, _ := s.PendingSyncItems(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected skipped item to be marked synced, got %d pending", len(pending))
	}
	if got := ledger.Exported(2025); len(got) != 0 {
		t.Fatalf("nothing should have been exported, got %+v", got)
	}
}

func TestProcessBatch_FailsAfterMaxRetries(t *testing.T) {
	s := memstore.New()
	ledger := memledger.New()
	config := DefaultSyncProcessorConfig()
	config.MaxRetries = 2
	processor := NewSyncProcessor(s, s, ledger, config)
	ctx := context.Background()

	j, err := s.CreateJob(ctx, core.Job{
		Date:          core.NewDate(2025, 5, 12),
		Address:       "1420 Quarry Rd",
		PaymentMethod: core.Cash,
		Amount:        core.Money{Cents: 40000},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := s.EnqueueSync(ctx, store.SyncRequest{
		JobID: j.ID, Operation: store.SyncOpUpsert, JobDate: j.Date,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ledger.SetErr(errors.New("quota exceeded"))

	processor.processBatch(ctx)
	pending, _ := s.PendingSyncItems(ctx, 10)
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("expected one pending item with one attempt, got %+v", pending)
	}

	processor.processBatch(ctx)
	pending, _ = s.PendingSyncItems(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected item marked failed after max retries, got %d pending", len(pending))
	}

	// Recovery does not resurrect permanently failed items.
	ledger.SetErr(nil)
	processor.processBatch(ctx)
	if got := ledger.Exported(2025); len(got) != 0 {
		t.Fatalf("failed item should stay failed, got %+v", got)
	}
}

package services

import (
	"context"
	"errors"
	"testing"

	"jobledger/internal/core"
	memstore "jobledger/internal/memory"
	"jobledger/internal/store"
)

func testJob(date core.Date) core.Job {
	return core.Job{
		Date:          date,
		CompanyName:   "Ridgeline Builders",
		Address:       "88 Mill Creek Dr",
		City:          "Crestwood",
		Yards:         9.5,
		PaymentMethod: core.Check,
		Amount:        core.Money{Cents: 92500},
	}
}

func TestJobService_CreateEnqueuesExport(t *testing.T) {
	s := memstore.New()
	svc := NewJobService(s, s, nil)
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, testJob(core.NewDate(2025, 7, 8)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pending, _ := s.PendingSyncItems(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("expected one queued export, got %d", len(pending))
	}
	item := pending[0]
	if item.JobID != created.ID || item.Operation != store.SyncOpUpsert {
		t.Errorf("unexpected queue item: %+v", item)
	}
	if item.JobDate.String() != "2025-07-08" {
		t.Errorf("queue item should carry the job date, got %s", item.JobDate)
	}
}

func TestJobService_CreateRejectsInvalid(t *testing.T) {
	s := memstore.New()
	svc := NewJobService(s, s, nil)
	ctx := context.Background()

	j := testJob(core.NewDate(2025, 7, 8))
	j.Address = "  "
	if _, err := svc.CreateJob(ctx, j); !errors.Is(err, core.ErrEmptyAddress) {
		t.Fatalf("expected ErrEmptyAddress, got %v", err)
	}

	pending, _ := s.PendingSyncItems(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("rejected job must not be queued, got %d items", len(pending))
	}
}

func TestJobService_DeleteQueuesRemoval(t *testing.T) {
	s := memstore.New()
	svc := NewJobService(s, s, nil)
	ctx := context.Background()

	created, err := svc.CreateJob(ctx, testJob(core.NewDate(2025, 7, 8)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeleteJob(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetJob(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("job should be gone, got %v", err)
	}

	// The pending upsert is dropped with the job; only the removal stays,
	// still carrying the date of the deleted job.
	pending, _ := s.PendingSyncItems(ctx, 10)
	if len(pending) != 1 || pending[0].Operation != store.SyncOpDelete {
		t.Fatalf("expected a single queued removal, got %+v", pending)
	}
	if pending[0].JobDate.String() != "2025-07-08" {
		t.Errorf("removal should carry the deleted job's date, got %s", pending[0].JobDate)
	}
}

func TestJobService_DeleteMissing(t *testing.T) {
	s := memstore.New()
	svc := NewJobService(s, s, nil)

	if err := svc.DeleteJob(context.Background(), "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobService_ListByRange(t *testing.T) {
	s := memstore.New()
	svc := NewJobService(s, s, nil)
	ctx := context.Background()

	day := core.NewDate(2025, 7, 8)
	if _, err := svc.CreateJob(ctx, testJob(day)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateJob(ctx, testJob(day)); err != nil {
		t.Fatalf("create: %v", err)
	}

	jobs, err := svc.ListJobsByDay(ctx, day)
	if err != nil {
		t.Fatalf("list by day: %v", err)
	}
	if len(jobs) != 2 || jobs[0].SequenceNumber != 1 || jobs[1].SequenceNumber != 2 {
		t.Fatalf("expected two numbered jobs, got %+v", jobs)
	}

	if _, err := svc.ListJobsByRange(ctx, day, day.AddDays(-1)); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate for inverted range, got %v", err)
	}
}

func TestJobService_NoQueueConfigured(t *testing.T) {
	s := memstore.New()
	svc := NewJobService(s, nil, nil)

	if _, err := svc.CreateJob(context.Background(), testJob(core.NewDate(2025, 7, 8))); err != nil {
		t.Fatalf("create without queue should work: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close without amqp should work: %v", err)
	}
}

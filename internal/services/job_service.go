package services

import (
	"context"
	"fmt"
	"log/slog"

	"jobledger/internal/amqp"
	"jobledger/internal/core"
	"jobledger/internal/store"
)

// JobService orchestrates job writes: local store first, then the sync
// queue and the AMQP bus. Queue and bus failures never fail the request;
// the job is already saved locally.
type JobService struct {
	jobs       store.JobStore
	queue      store.SyncQueue
	amqpClient *amqp.Client
}

// NewJobService wires the service. queue and amqpClient may be nil when
// ledger export is disabled.
func NewJobService(jobs store.JobStore, queue store.SyncQueue, amqpClient *amqp.Client) *JobService {
	return &JobService{
		jobs:       jobs,
		queue:      queue,
		amqpClient: amqpClient,
	}
}

func (s *JobService) CreateJob(ctx context.Context, j core.Job) (core.Job, error) {
	if err := j.Validate(); err != nil {
		return core.Job{}, err
	}

	created, err := s.jobs.CreateJob(ctx, j)
	if err != nil {
		return core.Job{}, fmt.Errorf("save job: %w", err)
	}

	s.enqueueExport(ctx, store.SyncRequest{
		JobID:     created.ID,
		Operation: store.SyncOpUpsert,
		JobDate:   created.Date,
	})
	s.publishSync(ctx, created.ID)

	return created, nil
}

func (s *JobService) UpdateJob(ctx context.Context, j core.Job) (core.Job, error) {
	if err := j.Validate(); err != nil {
		return core.Job{}, err
	}

	updated, err := s.jobs.UpdateJob(ctx, j)
	if err != nil {
		return core.Job{}, err
	}

	s.enqueueExport(ctx, store.SyncRequest{
		JobID:     updated.ID,
		Operation: store.SyncOpUpsert,
		JobDate:   updated.Date,
	})
	s.publishSync(ctx, updated.ID)

	return updated, nil
}

// DeleteJob removes the job locally and queues the ledger removal. The
// job date is captured before the delete so the export can still locate
// the right year tab.
func (s *JobService) DeleteJob(ctx context.Context, id string) error {
	j, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return err
	}

	if err := s.jobs.DeleteJob(ctx, id); err != nil {
		return err
	}

	s.enqueueExport(ctx, store.SyncRequest{
		JobID:     id,
		Operation: store.SyncOpDelete,
		JobDate:   j.Date,
	})
	s.publishDelete(ctx, id)

	return nil
}

func (s *JobService) GetJob(ctx context.Context, id string) (core.Job, error) {
	return s.jobs.GetJob(ctx, id)
}

func (s *JobService) ListJobsByRange(ctx context.Context, from, to core.Date) ([]core.Job, error) {
	if from.After(to.Time) {
		return nil, core.ErrInvalidDate
	}
	return s.jobs.ListJobsByRange(ctx, from, to)
}

// ListJobsByDay is the single-day convenience over ListJobsByRange.
func (s *JobService) ListJobsByDay(ctx context.Context, day core.Date) ([]core.Job, error) {
	return s.jobs.ListJobsByRange(ctx, day, day)
}

func (s *JobService) ListUnpaidJobs(ctx context.Context) ([]core.Job, error) {
	return s.jobs.ListUnpaidJobs(ctx)
}

func (s *JobService) SearchJobs(ctx context.Context, query string) ([]core.Job, error) {
	return s.jobs.SearchJobs(ctx, query)
}

func (s *JobService) enqueueExport(ctx context.Context, req store.SyncRequest) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueSync(ctx, req); err != nil {
		slog.ErrorContext(ctx, "Failed to enqueue ledger export",
			"job_id", req.JobID, "operation", string(req.Operation), "error", err)
	}
}

func (s *JobService) publishSync(ctx context.Context, jobID string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishJobSync(ctx, jobID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"job_id", jobID, "error", err)
	}
}

func (s *JobService) publishDelete(ctx context.Context, jobID string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishJobDelete(ctx, jobID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"job_id", jobID, "error", err)
	}
}

// Close releases the AMQP connection. Stores are owned by the backend
// and closed there.
func (s *JobService) Close() error {
	if s.amqpClient == nil {
		return nil
	}
	if err := s.amqpClient.Close(); err != nil {
		return fmt.Errorf("close amqp: %w", err)
	}
	return nil
}

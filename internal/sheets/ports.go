package sheets

import (
	"context"

	"jobledger/internal/core"
)

// LedgerExporter mirrors jobs into an external spreadsheet ledger, one
// tab per calendar year.
type LedgerExporter interface {
	// UpsertJob writes the job to its year tab, updating the existing
	// row when the job was exported before. Returns a row reference.
	UpsertJob(ctx context.Context, j core.Job) (rowRef string, err error)

	// RemoveJob clears the job's row. The job date is passed separately
	// because the job record may already be gone locally.
	RemoveJob(ctx context.Context, jobID string, jobDate core.Date) error
}

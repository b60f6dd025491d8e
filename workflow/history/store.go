// Package history persists the per-run metadata index: entries of the form
// {name, workflow_id, timestamp, backend, job_count, error_count}. This is
// storage for an external metadata sink; a CLI or table renderer that
// consumes it is out of scope here.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested workflow id has no run record.
var ErrNotFound = errors.New("history: not found")

// RunRecord is one entry in the run history index.
type RunRecord struct {
	Name       string
	WorkflowID string
	Timestamp  time.Time
	Backend    string
	JobCount   int
	ErrorCount int
}

// Store persists and retrieves RunRecords.
type Store interface {
	// Record adds r to the history index, replacing any existing record with
	// the same WorkflowID.
	Record(ctx context.Context, r RunRecord) error
	// List returns up to limit records, most recent first. limit <= 0 means
	// no limit.
	List(ctx context.Context, limit int) ([]RunRecord, error)
	// Get retrieves the record for a specific workflow id.
	Get(ctx context.Context, workflowID string) (RunRecord, error)
	// Close releases any resources held by the store.
	Close() error
}

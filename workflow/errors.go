package workflow

import (
	"errors"
	"fmt"
)

// Validation errors — returned by the builder before any task runs.
var (
	ErrDuplicateJob   = errors.New("workflow: duplicate job id")
	ErrUnknownJob     = errors.New("workflow: unknown job id")
	ErrDuplicateEdge  = errors.New("workflow: duplicate edge")
	ErrCycleDetected  = errors.New("workflow: cycle detected")
	ErrUnknownTarget  = errors.New("workflow: unknown target")
	ErrBadArraySpec   = errors.New("workflow: invalid array specification")
	ErrInvalidPreds   = errors.New("workflow: per-task predicate on non-array job")
	ErrCancelledByUser = errors.New("workflow: cancelled by caller")
)

// PredicateError reports a precondition or postcondition failure. It
// carries the predicate index and, for array jobs, the task index, per
// task or array index.
type PredicateError struct {
	// Post distinguishes a postcondition violation (true) from a
	// precondition violation (false).
	Post          bool
	JobID         string
	PredicateIdx  int
	TaskIndex     int // -1 for scalar jobs
	Cause         error
}

func (e *PredicateError) Error() string {
	kind := "precondition"
	if e.Post {
		kind = "postcondition"
	}
	if e.TaskIndex >= 0 {
		return fmt.Sprintf("job %s[%d]: %s %d violated", e.JobID, e.TaskIndex, kind, e.PredicateIdx)
	}
	return fmt.Sprintf("job %s: %s %d violated", e.JobID, kind, e.PredicateIdx)
}

func (e *PredicateError) Unwrap() error { return e.Cause }

// JobError wraps the error raised by a job's body, preserving the causal
// chain via Unwrap.
type JobError struct {
	JobID     string
	TaskIndex int // -1 for scalar jobs
	Cause     error
}

func (e *JobError) Error() string {
	if e.TaskIndex >= 0 {
		return fmt.Sprintf("job %s[%d] failed: %v", e.JobID, e.TaskIndex, e.Cause)
	}
	return fmt.Sprintf("job %s failed: %v", e.JobID, e.Cause)
}

func (e *JobError) Unwrap() error { return e.Cause }

// SubmissionError reports a fatal submission failure in the cluster
// backend. Already-submitted jobs in the same run are cancelled before this
// error is returned.
type SubmissionError struct {
	JobID string
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("slurm: submission of job %s failed: %v", e.JobID, e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// CallableSerializationError reports that a job's body could not be
// serialized for shipping to a compute node.
type CallableSerializationError struct {
	JobID string
	Cause error
}

func (e *CallableSerializationError) Error() string {
	return fmt.Sprintf("slurm: could not serialize body for job %s: %v", e.JobID, e.Cause)
}

func (e *CallableSerializationError) Unwrap() error { return e.Cause }

// AggregatedError summarizes all task failures observed during a single
// run, surfaced once the engine reaches quiescence. It is never used to
// abort the engine itself.
type AggregatedError struct {
	Failures []error
}

func (e *AggregatedError) Error() string {
	if len(e.Failures) == 0 {
		return "workflow: no failures"
	}
	return fmt.Sprintf("workflow: %d task(s) failed (first: %v)", len(e.Failures), e.Failures[0])
}

// Unwrap exposes the first failure for errors.Is/errors.As chaining.
func (e *AggregatedError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0]
}

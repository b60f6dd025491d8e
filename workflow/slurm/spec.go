// Package slurm translates a job DAG into a Slurm cluster submission: one
// sbatch script per job, dependency chains expressed with Slurm's native
// --dependency syntax, and a poll loop that maps squeue/sacct states back to
// terminal task outcomes. It depends only on primitive types so that the
// workflow package can sit on top of it without an import cycle.
package slurm

import "github.com/corvidlabs/dagflow/workflow/emit"

// DependencyStatus mirrors workflow.Status without importing the workflow
// package.
type DependencyStatus int

const (
	StatusSuccess DependencyStatus = iota
	StatusFailure
	StatusAny
)

// JobSpec is everything the translator needs to know about one job.
type JobSpec struct {
	ID            string
	Name          string
	ArraySize     int
	ArrayThrottle int
	Resources     map[string]string
	Join          JoinPolicy
	Skipped       bool
	// EncodedBody is the gob-encoded workflow.Executable for this job's
	// body, opaque to this package. Nil when Skipped is true.
	EncodedBody []byte
}

// JoinPolicy mirrors workflow.Join.
type JoinPolicy int

const (
	JoinAll JoinPolicy = iota
	JoinAny
)

// DependencySpec is one incoming edge, job-id to job-id.
type DependencySpec struct {
	From   string
	To     string
	Status DependencyStatus
}

// Spec is the full translation input: every job and dependency in the
// active (and possibly pruned) subgraph.
type Spec struct {
	RunID        string
	WorkDir      string
	Jobs         []JobSpec
	Dependencies []DependencySpec
	// SkippedJobs are job ids the caller has already pruned out: the
	// translator emits no script for these and reports them SKIPPED
	// directly in the outcome.
	SkippedJobs map[string]bool
	// DroppedIndices mirrors workflow.PruneResult.DroppedIndices; dropped
	// array indices are submitted with --array excluding those indices.
	DroppedIndices map[string]map[int]bool
}

// Outcome mirrors workflow.Outcome's terminal states plus Pending, so the
// caller can convert without this package depending on workflow.
type Outcome int

const (
	Pending Outcome = iota
	Succeeded
	Failed
	Cancelled
	Skipped
)

// TaskResult is one (job, index) terminal state.
type TaskResult struct {
	JobID   string
	Index   int
	Outcome Outcome
	Reason  string
}

// RunOutcome is everything Schedule needs to build a workflow.RunResult.
type RunOutcome struct {
	RunID   string
	Tasks   map[string][]TaskResult
	Aggregate map[string]Outcome
}

// EventSink is satisfied by emit.Emitter; declared locally so this package
// need not import the workflow package, only its leaf emit subpackage.
type EventSink = emit.Emitter

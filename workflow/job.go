// Package workflow provides the core scheduling engine for dagflow: a
// directed acyclic graph of jobs with per-edge completion policies,
// fan-out, gating preconditions, and completion-based pruning.
package workflow

import "context"

// Executable is the opaque handle the runtime invokes for a job's body.
// Index is -1 for scalar jobs and in [0, ArraySize) for array tasks.
type Executable interface {
	Invoke(ctx context.Context, index int) error
}

// ExecutableFunc adapts a plain function to the Executable interface.
type ExecutableFunc func(ctx context.Context, index int) error

// Invoke implements Executable.
func (f ExecutableFunc) Invoke(ctx context.Context, index int) error {
	return f(ctx, index)
}

// Join selects how a job combines the status of its incoming edges.
type Join int

const (
	// JoinAll requires every predecessor to be status-compatible before the
	// job may run. This is the default.
	JoinAll Join = iota
	// JoinAny requires at least one predecessor to be status-compatible.
	JoinAny
)

func (j Join) String() string {
	if j == JoinAny {
		return "ANY"
	}
	return "ALL"
}

// Resources is an opaque mapping of scheduler hints (cpus, ram, timelimit,
// partition, ...). The core never interprets these; only the Slurm
// translator reads well-known keys when present.
type Resources map[string]string

// Job is an immutable job descriptor. Values are only constructed by the
// Builder and become read-only once the workflow is frozen.
type Job struct {
	id             string
	name           string
	body           Executable
	arraySize      int
	arrayThrottle  int
	resources      Resources
	preconditions  []Predicate
	postconditions []Predicate
	join           Join
	skipped        bool
}

// ID returns the job's stable identifier.
func (j *Job) ID() string { return j.id }

// Name returns the job's human label.
func (j *Job) Name() string { return j.name }

// Body returns the job's opaque callable. A Skipped job keeps its body; the
// engine never invokes it.
func (j *Job) Body() Executable { return j.body }

// ArraySize returns the number of array tasks (1 for a scalar job).
func (j *Job) ArraySize() int { return j.arraySize }

// IsArray reports whether the job fans out into more than one task.
func (j *Job) IsArray() bool { return j.arraySize > 1 }

// ArrayThrottle returns the configured concurrency cap for array tasks on
// cluster backends, or 0 when unset. Ignored by the local engine.
func (j *Job) ArrayThrottle() int { return j.arrayThrottle }

// Resources returns the job's scheduler hints.
func (j *Job) Resources() Resources { return j.resources }

// Preconditions returns the job's ordered gating predicates.
func (j *Job) Preconditions() []Predicate { return j.preconditions }

// Postconditions returns the job's ordered completion predicates.
func (j *Job) Postconditions() []Predicate { return j.postconditions }

// Join returns the job's join policy over incoming edges.
func (j *Job) Join() Join { return j.join }

// Skipped reports whether the job is treated as completed without running
// its body.
func (j *Job) Skipped() bool { return j.skipped }

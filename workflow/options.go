package workflow

import (
	"time"

	"github.com/corvidlabs/dagflow/workflow/emit"
	"github.com/corvidlabs/dagflow/workflow/history"
)

// Backend selects which execution engine Schedule hands the active
// subgraph to.
type Backend int

const (
	// BackendAsync runs jobs in-process with cooperative concurrency. Default.
	BackendAsync Backend = iota
	// BackendDummy is BackendAsync with every body replaced by a short
	// randomized sleep wrapped in "START"/"END" emitter traces.
	BackendDummy
	// BackendSlurm translates the DAG into a Slurm submission and hands
	// execution off to the external scheduler.
	BackendSlurm
)

func (b Backend) String() string {
	switch b {
	case BackendDummy:
		return "dummy"
	case BackendSlurm:
		return "slurm"
	default:
		return "async"
	}
}

// Options configures a call to Schedule.
type Options struct {
	// Backend selects the execution engine. Zero value is BackendAsync.
	Backend Backend
	// Prune enables postcondition-based pruning of the active subgraph.
	Prune bool
	// Name is an optional human label recorded in the run history.
	Name string

	// MaxConcurrentBodies bounds how many job bodies run at once on the
	// local backend's worker pool. Default 8.
	MaxConcurrentBodies int
	// DefaultTimeout is an advisory per-task timeout passed through to the
	// executor on the local backend. The Slurm backend does not read it; a
	// job's "time" resource sets its limit there. Zero means no timeout.
	DefaultTimeout time.Duration
	// DummySleepMax bounds the randomized sleep used by BackendDummy.
	DummySleepMax time.Duration

	// Emitter receives task/workflow lifecycle events. Defaults to a
	// NullEmitter.
	Emitter emit.Emitter
	// Metrics, if non-nil, receives Prometheus observations.
	Metrics *Metrics
	// History, if non-nil, records a RunRecord for this schedule call.
	History history.Store

	// WorkDir is the root directory for the Slurm backend's per-run working
	// directory (scripts, serialized bodies, submission/event logs).
	WorkDir string
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentBodies <= 0 {
		o.MaxConcurrentBodies = 8
	}
	if o.DummySleepMax <= 0 {
		o.DummySleepMax = 50 * time.Millisecond
	}
	if o.Emitter == nil {
		o.Emitter = emit.NullEmitter{}
	}
	if o.WorkDir == "" {
		o.WorkDir = "."
	}
	return o
}

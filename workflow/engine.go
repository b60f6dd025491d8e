package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/corvidlabs/dagflow/workflow/emit"
)

// future is a write-once outcome variable with multiple observers: exactly
// the shape needed for a job's terminal state to fan out to every
// downstream job waiting on it without re-evaluating anything.
type future struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) resolve(o Outcome) {
	f.once.Do(func() {
		f.outcome = o
		close(f.done)
	})
}

// wait blocks until the future resolves or ctx is done. ok is false only on
// context cancellation.
func (f *future) wait(ctx context.Context) (outcome Outcome, ok bool) {
	select {
	case <-f.done:
		return f.outcome, true
	case <-ctx.Done():
		return Pending, false
	}
}

// RunResult is the outcome of a single Engine.Run call.
type RunResult struct {
	RunID      string
	Tasks      map[string][]TaskState // job id -> task states, ordered by index
	Aggregates map[string]Outcome     // job id -> aggregate outcome visible to successors
	Failures   []error                // every FAILED task's error, in no particular order
}

// Aggregated returns a single error summarizing all failures, or nil if
// there were none.
func (r *RunResult) Aggregated() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &AggregatedError{Failures: r.Failures}
}

// Engine is the local asynchronous execution engine: a cooperative,
// per-task scheduler honouring join/status semantics, array fan-out,
// pre/postconditions, cancellation and error aggregation. Job bodies run on
// a bounded worker pool so that concurrent tasks truly overlap during
// blocking work.
type Engine struct {
	wf       *Workflow
	opts     Options
	pool     *workerPool
	cancelled atomic.Bool

	mu       sync.Mutex
	futures  map[string]*future
	results  map[string][]TaskState
	failures []error
}

// NewEngine builds an Engine for wf using opts (defaults applied for any
// zero-valued field relevant to the local backend).
func NewEngine(wf *Workflow, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		wf:      wf,
		opts:    opts,
		pool:    newWorkerPool(opts.MaxConcurrentBodies),
		futures: make(map[string]*future),
		results: make(map[string][]TaskState),
	}
}

// Cancel sets the workflow-wide cancellation flag. Tasks not yet executing
// transition to CANCELLED; tasks already running are allowed to finish and
// are then recorded as CANCELLED regardless of their own exit.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

func (e *Engine) isCancelled() bool {
	return e.cancelled.Load()
}

// Run executes every job in active to a terminal state, honouring prune
// (which may be nil to disable pruning), and returns once the workflow has
// reached quiescence. Run never fails because of task-level errors — it
// always runs to completion and reports failures in RunResult.Failures:
// failure is never fatal to the engine itself.
func (e *Engine) Run(ctx context.Context, active map[string]bool, prune *PruneResult) (*RunResult, error) {
	runID := uuid.NewString()
	e.opts.Emitter.Emit(emit.Event{RunID: runID, Msg: emit.WorkflowStarted, Index: -1})

	// Watch for external cancellation (e.g. the caller's ctx, or a signal
	// handler cancelling it) and flip the workflow-wide flag.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	go func() {
		select {
		case <-ctx.Done():
			e.Cancel()
		case <-watchCtx.Done():
		}
	}()

	for id := range active {
		e.futures[id] = newFuture()
	}

	var grp errgroup.Group
	for id := range active {
		job, ok := e.wf.Job(id)
		if !ok {
			continue
		}
		if prune != nil && prune.SkippedJobs[id] {
			e.publishSkippedJob(runID, job)
			continue
		}
		job := job
		grp.Go(func() error {
			e.runJob(ctx, runID, job, prune)
			return nil
		})
	}
	_ = grp.Wait()

	e.pool.stop()

	result := &RunResult{RunID: runID, Tasks: e.results, Aggregates: make(map[string]Outcome), Failures: e.failures}
	for id, f := range e.futures {
		select {
		case <-f.done:
			result.Aggregates[id] = f.outcome
		default:
			result.Aggregates[id] = Pending
		}
	}

	e.opts.Emitter.Emit(emit.Event{
		RunID: runID, Msg: emit.WorkflowFinished, Index: -1,
		Meta: map[string]any{"job_count": len(active), "error_count": len(e.failures)},
	})
	return result, nil
}

// publishSkippedJob handles a job pruned entirely out of execution: no
// join/precondition evaluation occurs, and its body is never invoked.
func (e *Engine) publishSkippedJob(runID string, job *Job) {
	n := job.ArraySize()
	states := make([]TaskState, n)
	for i := 0; i < n; i++ {
		idx := i
		if !job.IsArray() {
			idx = -1
		}
		states[i] = TaskState{JobID: job.ID(), Index: idx, Outcome: Skipped}
	}
	outcome := Skipped
	e.mu.Lock()
	e.results[job.ID()] = states
	e.mu.Unlock()
	e.futures[job.ID()].resolve(outcome)
	e.opts.Emitter.Emit(emit.Event{
		RunID: runID, JobID: job.ID(), Index: -1, Msg: emit.TaskFinished,
		Meta: map[string]any{"outcome": outcome.String(), "reason": "pruned: postconditions already held"},
	})
}

// runJob evaluates job's join condition once (edges are job-level, so every
// task of an array job shares the same predecessor decision), then either
// cancels every non-dropped task uniformly or fans out one goroutine per
// non-dropped task index.
func (e *Engine) runJob(ctx context.Context, runID string, job *Job, prune *PruneResult) {
	preds := e.wf.IncomingEdges(job.ID())
	joinOK, reason := e.waitJoin(ctx, job, preds)

	n := job.ArraySize()
	indices := make([]int, 0, n)
	dropped := make(map[int]bool)
	if prune != nil {
		dropped = prune.DroppedIndices[job.ID()]
	}
	for i := 0; i < n; i++ {
		idx := i
		if !job.IsArray() {
			idx = -1
		}
		if dropped[i] {
			continue
		}
		indices = append(indices, idx)
	}

	states := make([]TaskState, n)
	for i := 0; i < n; i++ {
		idx := i
		if !job.IsArray() {
			idx = -1
		}
		if dropped[i] {
			states[i] = TaskState{JobID: job.ID(), Index: idx, Outcome: Skipped}
		}
	}

	if !joinOK {
		for _, idx := range indices {
			pos := idx
			if job.IsArray() {
				pos = idx
			} else {
				pos = 0
			}
			st := TaskState{JobID: job.ID(), Index: idx, Outcome: Cancelled, Reason: reason}
			states[pos] = st
			e.emitTaskFinished(runID, st)
		}
	} else {
		var grp errgroup.Group
		var smu sync.Mutex
		for _, idx := range indices {
			idx := idx
			grp.Go(func() error {
				st := e.runTask(ctx, runID, job, idx)
				pos := idx
				if !job.IsArray() {
					pos = 0
				}
				smu.Lock()
				states[pos] = st
				smu.Unlock()
				e.emitTaskFinished(runID, st)
				return nil
			})
		}
		_ = grp.Wait()
	}

	outcomes := make([]Outcome, n)
	for i, st := range states {
		outcomes[i] = st.Outcome
	}

	e.mu.Lock()
	e.results[job.ID()] = states
	for _, st := range states {
		if st.Outcome == Failed {
			e.failures = append(e.failures, st.Err)
		}
	}
	e.mu.Unlock()

	e.futures[job.ID()].resolve(aggregate(outcomes))
}

func (e *Engine) emitTaskFinished(runID string, st TaskState) {
	meta := map[string]any{"outcome": st.Outcome.String()}
	if st.Reason != "" {
		meta["reason"] = st.Reason
	}
	if st.Err != nil {
		meta["error"] = st.Err.Error()
	}
	e.opts.Emitter.Emit(emit.Event{RunID: runID, JobID: st.JobID, Index: st.Index, Msg: emit.TaskFinished, Meta: meta})
}

// waitJoin evaluates job's join policy against the outcomes of its
// predecessor jobs.
func (e *Engine) waitJoin(ctx context.Context, job *Job, preds []Edge) (ok bool, reason string) {
	if len(preds) == 0 {
		return true, ""
	}
	type predResult struct {
		edge    Edge
		outcome Outcome
		valid   bool
	}
	results := make(chan predResult, len(preds))
	for _, edge := range preds {
		edge := edge
		go func() {
			f := e.future(edge.From)
			outcome, valid := f.wait(ctx)
			results <- predResult{edge, outcome, valid}
		}()
	}

	switch job.Join() {
	case JoinAny:
		lastBad := ""
		for i := 0; i < len(preds); i++ {
			r := <-results
			if !r.valid {
				return false, "unsatisfied dependency: workflow cancelled"
			}
			if r.edge.compatible(r.outcome) {
				return true, ""
			}
			lastBad = r.edge.From
		}
		return false, fmt.Sprintf("unsatisfied dependency: no compatible predecessor (last: %s)", lastBad)
	default: // JoinAll
		var collected []predResult
		for i := 0; i < len(preds); i++ {
			r := <-results
			if !r.valid {
				return false, "unsatisfied dependency: workflow cancelled"
			}
			collected = append(collected, r)
		}
		for _, r := range collected {
			if !r.edge.compatible(r.outcome) {
				return false, fmt.Sprintf("unsatisfied dependency: %s", r.edge.From)
			}
		}
		return true, ""
	}
}

func (e *Engine) future(jobID string) *future {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.futures[jobID]
	if !ok {
		// Predecessor outside the active subgraph: treat as an
		// already-resolved success so edges pointing at out-of-subgraph
		// jobs never block (should not occur for a correctly-computed
		// active subgraph, but keeps Run total).
		f = newFuture()
		f.resolve(Succeeded)
		e.futures[jobID] = f
	}
	return f
}

// runTask runs the full per-task protocol (preconditions, body, then
// postconditions) for one task once its job's join condition has been
// satisfied.
func (e *Engine) runTask(ctx context.Context, runID string, job *Job, index int) TaskState {
	base := TaskState{JobID: job.ID(), Index: index}

	if e.isCancelled() {
		base.Outcome = Cancelled
		base.Reason = "cancelled before start"
		return base
	}

	start := time.Now()
	if ok, failedAt, perr := evalAll(ctx, job.Preconditions(), index); !ok {
		cause := perr
		if cause == nil {
			cause = fmt.Errorf("precondition %d returned false", failedAt)
		}
		base.Outcome = Failed
		base.Err = &PredicateError{Post: false, JobID: job.ID(), PredicateIdx: failedAt, TaskIndex: index, Cause: cause}
		e.opts.Metrics.observeTask(job.ID(), Failed, float64(time.Since(start).Milliseconds()))
		return base
	}

	var bodyErr error
	if job.Skipped() {
		// body never invoked; outcome synthesizes straight to SUCCEEDED below
	} else {
		bodyCtx := ctx
		if e.opts.DefaultTimeout > 0 {
			var cancel context.CancelFunc
			bodyCtx, cancel = context.WithTimeout(ctx, e.opts.DefaultTimeout)
			defer cancel()
		}
		e.opts.Metrics.incActive()
		bodyErr = e.pool.run(bodyCtx, func(ctx context.Context) error {
			return job.Body().Invoke(ctx, index)
		})
		e.opts.Metrics.decActive()
	}
	if e.isCancelled() {
		// Cancelled while the body ran: recorded CANCELLED whatever it returned.
		base.Outcome = Cancelled
		base.Reason = "cancelled"
		e.opts.Metrics.observeTask(job.ID(), Cancelled, float64(time.Since(start).Milliseconds()))
		return base
	}
	if bodyErr != nil {
		base.Outcome = Failed
		base.Err = &JobError{JobID: job.ID(), TaskIndex: index, Cause: bodyErr}
		e.opts.Metrics.observeTask(job.ID(), Failed, float64(time.Since(start).Milliseconds()))
		return base
	}

	if ok, failedAt, perr := evalAll(ctx, job.Postconditions(), index); !ok {
		cause := perr
		if cause == nil {
			cause = fmt.Errorf("postcondition %d returned false", failedAt)
		}
		base.Outcome = Failed
		base.Err = &PredicateError{Post: true, JobID: job.ID(), PredicateIdx: failedAt, TaskIndex: index, Cause: cause}
		e.opts.Metrics.observeTask(job.ID(), Failed, float64(time.Since(start).Milliseconds()))
		return base
	}

	base.Outcome = Succeeded
	if e.isCancelled() {
		base.Outcome = Cancelled
		base.Reason = "cancelled"
	}
	e.opts.Metrics.observeTask(job.ID(), base.Outcome, float64(time.Since(start).Milliseconds()))
	return base
}

package workflow

import "context"

// ActiveSubgraph computes the reachable set R for a set of targets: the
// transitive closure of To -> From over edges (ancestors of the targets,
// including the targets themselves).
func ActiveSubgraph(wf *Workflow, targets []string) (map[string]bool, error) {
	active := make(map[string]bool, len(targets))
	var stack []string
	for _, t := range targets {
		if _, ok := wf.Job(t); !ok {
			return nil, &unknownTargetErr{id: t}
		}
		stack = append(stack, t)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if active[id] {
			continue
		}
		active[id] = true
		for _, e := range wf.IncomingEdges(id) {
			if !active[e.From] {
				stack = append(stack, e.From)
			}
		}
	}
	return active, nil
}

type unknownTargetErr struct{ id string }

func (e *unknownTargetErr) Error() string { return "workflow: unknown target " + e.id }
func (e *unknownTargetErr) Unwrap() error { return ErrUnknownTarget }

// PruneResult records which jobs/array indices were dropped from the active
// subgraph by postcondition evaluation.
type PruneResult struct {
	// SkippedJobs holds job ids whose postconditions all held (scalar jobs)
	// or whose every array index was dropped (array jobs become SKIPPED
	// wholesale).
	SkippedJobs map[string]bool
	// DroppedIndices holds, per array job id, the set of task indices whose
	// postconditions already held.
	DroppedIndices map[string]map[int]bool
	// PredicateErrors records PredicateError values surfaced while
	// evaluating postconditions; these do not fail pruning — the job (or
	// index) is conservatively left live.
	PredicateErrors []error
}

// newPruneResult returns an empty PruneResult.
func newPruneResult() *PruneResult {
	return &PruneResult{
		SkippedJobs:    make(map[string]bool),
		DroppedIndices: make(map[string]map[int]bool),
	}
}

// Prune evaluates postconditions for every job in active that declares at
// least one, in declaration order, stopping at the first False — exactly
// once per job (or per array index). Pruning is
// idempotent: running it twice over the same active set yields the same
// result, since postcondition predicates are required to be side-effect
// free.
func Prune(ctx context.Context, wf *Workflow, active map[string]bool) *PruneResult {
	res := newPruneResult()
	for id := range active {
		job, ok := wf.Job(id)
		if !ok || len(job.Postconditions()) == 0 {
			continue
		}
		if job.IsArray() {
			dropped := make(map[int]bool)
			for idx := 0; idx < job.ArraySize(); idx++ {
				ok, failedAt, err := evalAll(ctx, job.Postconditions(), idx)
				if err != nil {
					res.PredicateErrors = append(res.PredicateErrors, &PredicateError{
						Post: true, JobID: id, PredicateIdx: failedAt, TaskIndex: idx, Cause: err,
					})
					continue
				}
				if ok {
					dropped[idx] = true
				}
			}
			if len(dropped) > 0 {
				res.DroppedIndices[id] = dropped
			}
			if len(dropped) == job.ArraySize() {
				res.SkippedJobs[id] = true
			}
			continue
		}
		ok, failedAt, err := evalAll(ctx, job.Postconditions(), -1)
		if err != nil {
			res.PredicateErrors = append(res.PredicateErrors, &PredicateError{
				Post: true, JobID: id, PredicateIdx: failedAt, TaskIndex: -1, Cause: err,
			})
			continue
		}
		if ok {
			res.SkippedJobs[id] = true
		}
	}
	return res
}

// IsIndexDropped reports whether pruning dropped a specific array task.
func (p *PruneResult) IsIndexDropped(jobID string, index int) bool {
	m, ok := p.DroppedIndices[jobID]
	return ok && m[index]
}

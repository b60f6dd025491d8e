package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/dagflow/workflow/history"
	"github.com/corvidlabs/dagflow/workflow/slurm"
)

// Schedule computes the active subgraph for wf's targets, optionally prunes
// it, and runs it on the backend selected by opts.Backend. It is the single
// entrypoint demo programs and tests use; internally it only wires together
// ActiveSubgraph, Prune, Engine and the Slurm translator.
func Schedule(ctx context.Context, wf *Workflow, opts Options) (*RunResult, error) {
	opts = opts.withDefaults()

	active, err := ActiveSubgraph(wf, wf.Targets())
	if err != nil {
		return nil, fmt.Errorf("workflow: schedule: %w", err)
	}

	var prune *PruneResult
	if opts.Prune {
		prune = Prune(ctx, wf, active)
	}

	var (
		result *RunResult
		runErr error
	)
	switch opts.Backend {
	case BackendSlurm:
		result, runErr = runSlurm(ctx, wf, active, prune, opts)
	case BackendDummy:
		runID := uuid.NewString()
		dummyWF := wrapDummy(wf, runID, opts)
		engine := NewEngine(dummyWF, opts)
		result, runErr = engine.Run(ctx, active, prune)
		if result != nil {
			result.RunID = runID
		}
	default:
		engine := NewEngine(wf, opts)
		result, runErr = engine.Run(ctx, active, prune)
	}
	if runErr != nil {
		return result, runErr
	}

	if opts.History != nil {
		rec := history.RunRecord{
			Name:       opts.Name,
			WorkflowID: result.RunID,
			Timestamp:  time.Now(),
			Backend:    opts.Backend.String(),
			JobCount:   len(active),
			ErrorCount: len(result.Failures),
		}
		if err := opts.History.Record(ctx, rec); err != nil {
			return result, fmt.Errorf("workflow: schedule: record history: %w", err)
		}
	}

	return result, nil
}

// runSlurm translates the active subgraph into a slurm.Spec, submits it,
// and converts the resulting slurm.RunOutcome back into a RunResult.
func runSlurm(ctx context.Context, wf *Workflow, active map[string]bool, prune *PruneResult, opts Options) (*RunResult, error) {
	runID := uuid.NewString()
	spec := slurm.Spec{
		RunID:   runID,
		WorkDir: opts.WorkDir,
	}
	if prune != nil {
		spec.SkippedJobs = prune.SkippedJobs
		spec.DroppedIndices = prune.DroppedIndices
	}

	for id := range active {
		job, ok := wf.Job(id)
		if !ok {
			continue
		}
		js := slurm.JobSpec{
			ID:            job.ID(),
			Name:          job.Name(),
			ArraySize:     job.ArraySize(),
			ArrayThrottle: job.ArrayThrottle(),
			Resources:     map[string]string(job.Resources()),
			Join:          toSlurmJoin(job.Join()),
			Skipped:       job.Skipped(),
		}
		if !job.Skipped() && (prune == nil || !prune.SkippedJobs[id]) {
			body, err := EncodeExecutable(job.ID(), job.Body())
			if err != nil {
				return nil, err
			}
			js.EncodedBody = body
		}
		spec.Jobs = append(spec.Jobs, js)
	}
	for _, e := range wf.Edges() {
		if !active[e.From] || !active[e.To] {
			continue
		}
		spec.Dependencies = append(spec.Dependencies, slurm.DependencySpec{
			From: e.From, To: e.To, Status: toSlurmStatus(e.Status),
		})
	}

	translator := slurm.NewTranslator(opts.WorkDir)
	out, err := translator.Run(ctx, spec, runID, opts.Emitter)
	if err != nil {
		return nil, err
	}
	return fromSlurmOutcome(out), nil
}

func toSlurmJoin(j Join) slurm.JoinPolicy {
	if j == JoinAny {
		return slurm.JoinAny
	}
	return slurm.JoinAll
}

func toSlurmStatus(s Status) slurm.DependencyStatus {
	switch s {
	case StatusFailure:
		return slurm.StatusFailure
	case StatusAny:
		return slurm.StatusAny
	default:
		return slurm.StatusSuccess
	}
}

func fromSlurmOutcome(out *slurm.RunOutcome) *RunResult {
	result := &RunResult{
		RunID:      out.RunID,
		Tasks:      make(map[string][]TaskState),
		Aggregates: make(map[string]Outcome),
	}
	for jobID, tasks := range out.Tasks {
		states := make([]TaskState, len(tasks))
		for i, tr := range tasks {
			o := fromSlurmTaskOutcome(tr.Outcome)
			states[i] = TaskState{JobID: tr.JobID, Index: tr.Index, Outcome: o, Reason: tr.Reason}
			if o == Failed {
				result.Failures = append(result.Failures, &JobError{JobID: jobID, TaskIndex: tr.Index, Cause: fmt.Errorf("slurm job reported a failed state")})
			}
		}
		result.Tasks[jobID] = states
	}
	for jobID, agg := range out.Aggregate {
		result.Aggregates[jobID] = fromSlurmTaskOutcome(agg)
	}
	return result
}

func fromSlurmTaskOutcome(o slurm.Outcome) Outcome {
	switch o {
	case slurm.Succeeded:
		return Succeeded
	case slurm.Failed:
		return Failed
	case slurm.Cancelled:
		return Cancelled
	case slurm.Skipped:
		return Skipped
	default:
		return Pending
	}
}

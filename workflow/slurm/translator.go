package slurm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/corvidlabs/dagflow/workflow/emit"
)

// Translator turns a Spec into an sbatch submission, waits for every task to
// reach a terminal Slurm state, and reports the result as a RunOutcome. It
// is a submit-then-poll loop rather than an event-driven scheduler, since
// Slurm itself owns the scheduling decision once a script is submitted.
type Translator struct {
	WorkDir      string
	Client       Client
	PollInterval time.Duration
}

// NewTranslator returns a Translator that shells out to the real Slurm CLI
// tools rooted at workDir for generated scripts and logs.
func NewTranslator(workDir string) *Translator {
	return &Translator{WorkDir: workDir, Client: NewExecClient(), PollInterval: 5 * time.Second}
}

// Run submits spec's jobs in dependency order and blocks until every task
// reaches a terminal state.
func (t *Translator) Run(ctx context.Context, spec Spec, runID string, emitter emit.Emitter) (*RunOutcome, error) {
	if emitter == nil {
		emitter = emit.NullEmitter{}
	}
	runDir := filepath.Join(t.WorkDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("slurm: create run dir: %w", err)
	}

	byID := make(map[string]JobSpec, len(spec.Jobs))
	for _, j := range spec.Jobs {
		byID[j.ID] = j
	}
	incoming := make(map[string][]DependencySpec)
	for _, d := range spec.Dependencies {
		incoming[d.To] = append(incoming[d.To], d)
	}

	order, err := topoOrder(spec)
	if err != nil {
		return nil, err
	}

	slurmIDs := make(map[string]string) // job id -> slurm job id
	submitted := make([]string, 0, len(order))
	outcome := &RunOutcome{RunID: runID, Tasks: make(map[string][]TaskResult), Aggregate: make(map[string]Outcome)}

	rollback := func(cause error) (*RunOutcome, error) {
		for _, sid := range submitted {
			_ = t.Client.Cancel(ctx, sid)
		}
		return outcome, cause
	}

	for _, id := range order {
		job := byID[id]
		if spec.SkippedJobs[id] {
			outcome.Tasks[id] = skippedTaskResults(job)
			outcome.Aggregate[id] = Skipped
			emitter.Emit(emit.Event{RunID: runID, JobID: id, Index: -1, Msg: emit.TaskFinished,
				Meta: map[string]any{"outcome": "SKIPPED", "reason": "pruned before submission"}})
			continue
		}

		dependency, note := BuildDependency(incoming[id], job.Join, slurmIDs, spec.SkippedJobs)
		if note != "" {
			emitter.Emit(emit.Event{RunID: runID, JobID: id, Index: -1, Msg: emit.TranslatorNote,
				Meta: map[string]any{"note": note}})
		}

		var active []int
		if job.ArraySize > 1 {
			active = remainingIndices(job.ArraySize, spec.DroppedIndices[id])
			if len(active) == 0 {
				outcome.Tasks[id] = skippedTaskResults(job)
				outcome.Aggregate[id] = Skipped
				continue
			}
		}

		bodyPath := filepath.Join(runDir, id+".body")
		if len(job.EncodedBody) > 0 {
			if err := os.WriteFile(bodyPath, job.EncodedBody, 0o600); err != nil {
				return rollback(fmt.Errorf("slurm: write body for %s: %w", id, err))
			}
		}
		scriptPath, err := renderScript(runDir, job, bodyPath, active, dependency)
		if err != nil {
			return rollback(err)
		}
		sid, err := t.Client.Submit(ctx, scriptPath, dependency)
		if err != nil {
			return rollback(&submissionError{jobID: id, cause: err})
		}
		slurmIDs[id] = sid
		submitted = append(submitted, sid)
	}

	if err := t.poll(ctx, spec, byID, slurmIDs, outcome, runID, emitter); err != nil {
		return outcome, err
	}
	return outcome, nil
}

type submissionError struct {
	jobID string
	cause error
}

func (e *submissionError) Error() string { return fmt.Sprintf("slurm: submission of job %s failed: %v", e.jobID, e.cause) }
func (e *submissionError) Unwrap() error { return e.cause }

func skippedTaskResults(job JobSpec) []TaskResult {
	n := job.ArraySize
	if n < 1 {
		n = 1
	}
	out := make([]TaskResult, n)
	for i := range out {
		idx := i
		if job.ArraySize <= 1 {
			idx = -1
		}
		out[i] = TaskResult{JobID: job.ID, Index: idx, Outcome: Skipped}
	}
	return out
}

func remainingIndices(size int, dropped map[int]bool) []int {
	var out []int
	for i := 0; i < size; i++ {
		if !dropped[i] {
			out = append(out, i)
		}
	}
	return out
}

// BuildDependency renders Slurm's --dependency value for job's incoming
// edges, one term per edge in declaration order. Edges from a skipped
// predecessor need no term: a skipped job's success is synthesized
// immediately, so there is nothing left to wait on. A JoinAll job joins its
// terms with "," (Slurm's native AND). A JoinAny job joins them with "?"
// (Slurm's native OR, added in 19.05) and gets a translator note: older
// schedulers reject "?", so the boolean is reproduced correctly but the
// submission may be refused on those deployments. Exported so callers can
// preview the dependency string a run would submit without touching a
// cluster.
func BuildDependency(edges []DependencySpec, join JoinPolicy, slurmIDs map[string]string, skipped map[string]bool) (dependency string, note string) {
	terms := make([]string, 0, len(edges))
	for _, e := range edges {
		if skipped[e.From] {
			continue
		}
		sid, ok := slurmIDs[e.From]
		if !ok {
			continue
		}
		terms = append(terms, dependencyKeyword(e.Status)+":"+sid)
	}
	if len(terms) == 0 {
		return "", ""
	}
	if join == JoinAll {
		return joinTerms(terms, ","), ""
	}
	if len(terms) > 1 {
		note = "ANY join expressed via Slurm's '?' OR separator (requires Slurm >= 19.05); older schedulers may reject this dependency string"
	}
	return joinTerms(terms, "?"), note
}

func dependencyKeyword(s DependencyStatus) string {
	switch s {
	case StatusSuccess:
		return "afterok"
	case StatusFailure:
		return "afternotok"
	default:
		return "afterany"
	}
}

func joinTerms(terms []string, sep string) string {
	out := terms[0]
	for _, term := range terms[1:] {
		out += sep + term
	}
	return out
}

// topoOrder returns spec.Jobs in an order where every predecessor precedes
// its successors, via Kahn's algorithm. Cycle detection is the core
// builder's job; an unexpected cycle here indicates a malformed Spec.
func topoOrder(spec Spec) ([]string, error) {
	indeg := map[string]int{}
	adj := map[string][]string{}
	for _, j := range spec.Jobs {
		indeg[j.ID] = 0
	}
	for _, d := range spec.Dependencies {
		adj[d.From] = append(adj[d.From], d.To)
		indeg[d.To]++
	}
	var queue []string
	for _, j := range spec.Jobs {
		if indeg[j.ID] == 0 {
			queue = append(queue, j.ID)
		}
	}
	sort.Strings(queue)
	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		next := adj[id]
		sort.Strings(next)
		for _, n := range next {
			indeg[n]--
			if indeg[n] == 0 {
				queue = append(queue, n)
			}
		}
	}
	if len(order) != len(spec.Jobs) {
		return nil, fmt.Errorf("slurm: dependency graph is not acyclic")
	}
	return order, nil
}

// poll blocks until every submitted job reaches a terminal Slurm state,
// translating states into outcome.
func (t *Translator) poll(ctx context.Context, spec Spec, byID map[string]JobSpec, slurmIDs map[string]string, outcome *RunOutcome, runID string, emitter emit.Emitter) error {
	pending := make(map[string]string, len(slurmIDs)) // job id -> slurm id, shrinks as jobs finish
	for id, sid := range slurmIDs {
		pending[id] = sid
	}
	interval := t.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for len(pending) > 0 {
		ids := make([]string, 0, len(pending))
		for _, sid := range pending {
			ids = append(ids, sid)
		}
		states, err := t.Client.Poll(ctx, ids)
		if err != nil {
			return fmt.Errorf("slurm: poll: %w", err)
		}
		for id, sid := range pending {
			st, ok := states[sid]
			if !ok {
				st = StateUnknown
			}
			if !terminalState(st) {
				continue
			}
			job := byID[id]
			results, agg := resolveOutcome(job, st)
			outcome.Tasks[id] = results
			outcome.Aggregate[id] = agg
			emitter.Emit(emit.Event{RunID: runID, JobID: id, Index: -1, Msg: emit.TaskFinished,
				Meta: map[string]any{"outcome": outcomeString(agg), "slurm_job_id": sid}})
			delete(pending, id)
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}

func terminalState(s JobState) bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimeout, StateUnknown:
		return true
	default:
		return false
	}
}

func resolveOutcome(job JobSpec, st JobState) ([]TaskResult, Outcome) {
	var per Outcome
	switch st {
	case StateCompleted:
		per = Succeeded
	case StateFailed, StateTimeout:
		per = Failed
	case StateCancelled:
		per = Cancelled
	default:
		per = Failed
	}
	n := job.ArraySize
	if n < 1 {
		n = 1
	}
	out := make([]TaskResult, n)
	for i := range out {
		idx := i
		if job.ArraySize <= 1 {
			idx = -1
		}
		out[i] = TaskResult{JobID: job.ID, Index: idx, Outcome: per}
	}
	return out, per
}

func outcomeString(o Outcome) string {
	switch o {
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED"
	case Skipped:
		return "SKIPPED"
	default:
		return "PENDING"
	}
}

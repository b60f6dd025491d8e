package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corvidlabs/dagflow/workflow/emit"
)

// scenario 1: linear chain with a failure tolerated by ANY.
func TestScheduleLinearChainToleratesFailureViaAny(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(noop))
	bb := b.DefineJob("b", "b", ExecutableFunc(func(ctx context.Context, i int) error {
		return errors.New("b always fails")
	}))
	c := b.DefineJob("c", "c", ExecutableFunc(noop))
	b.AddDependency(a, c, StatusSuccess)
	b.AddDependency(bb, c, StatusAny)
	c.SetJoin(JoinAll)
	wf, err := b.Freeze([]JobRef{c})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}

	result, err := Schedule(context.Background(), wf, Options{})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	want := map[string]Outcome{"a": Succeeded, "b": Failed, "c": Succeeded}
	for id, o := range want {
		if result.Aggregates[id] != o {
			t.Errorf("job %s: got %v, want %v", id, result.Aggregates[id], o)
		}
	}
}

// scenario 2: array + ANY + pruning.
func TestScheduleArrayAnyWithPruning(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(func(ctx context.Context, i int) error {
		return errors.New("a fails")
	}))
	bb := b.DefineJob("b", "b", ExecutableFunc(noop))
	finished := map[int]bool{0: true, 1: true, 2: false, 3: true, 4: true}
	c := b.DefineJob("c", "c", ExecutableFunc(func(ctx context.Context, i int) error {
		finished[i] = true
		return nil
	}), ArraySize(5))
	c.AddPostcondition(ArrayPredicate(func(ctx context.Context, i int) (bool, error) {
		return finished[i], nil
	}))
	b.AddDependency(a, c, StatusSuccess)
	b.AddDependency(bb, c, StatusSuccess)
	c.SetJoin(JoinAny)
	d := b.DefineJob("d", "d", ExecutableFunc(noop))
	b.AddDependency(a, d, StatusAny)
	b.AddDependency(bb, d, StatusSuccess)
	b.AddDependency(c, d, StatusSuccess)

	wf, err := b.Freeze([]JobRef{d})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	result, err := Schedule(context.Background(), wf, Options{Prune: true})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	want := map[string]Outcome{"a": Failed, "b": Succeeded, "c": Succeeded, "d": Succeeded}
	for id, o := range want {
		if result.Aggregates[id] != o {
			t.Errorf("job %s: got %v, want %v", id, result.Aggregates[id], o)
		}
	}
	cStates := result.Tasks["c"]
	for _, st := range cStates {
		if st.Index == 2 {
			if st.Outcome != Succeeded {
				t.Errorf("index 2 should have actually run and succeeded, got %v", st.Outcome)
			}
		} else if st.Outcome != Skipped {
			t.Errorf("index %d should be dropped (SKIPPED), got %v", st.Index, st.Outcome)
		}
	}
}

// scenario 3: postcondition prune removes a whole job despite the upstream failure.
func TestSchedulePostconditionPruneEntireJob(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(func(ctx context.Context, i int) error {
		return errors.New("a fails")
	}))
	c := b.DefineJob("c", "c", ExecutableFunc(func(ctx context.Context, i int) error {
		t.Fatal("c's body must never run once pruned")
		return nil
	}))
	b.AddDependency(a, c, StatusAny)
	c.AddPostcondition(ScalarPredicate(func(ctx context.Context) (bool, error) { return true, nil }))
	wf, err := b.Freeze([]JobRef{c})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	result, err := Schedule(context.Background(), wf, Options{Prune: true})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if result.Aggregates["a"] != Failed {
		t.Errorf("a: got %v, want FAILED", result.Aggregates["a"])
	}
	if result.Aggregates["c"] != Skipped {
		t.Errorf("c: got %v, want SKIPPED (synthesizes SUCCESS for any downstream joins)", result.Aggregates["c"])
	}
	if len(result.Failures) == 0 {
		t.Errorf("expected a's failure to be reported in the run result")
	}
}

// scenario 5: precondition violation fails the job without invoking its
// body; ALL-join descendants become CANCELLED.
func TestSchedulePreconditionViolationCancelsDescendants(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(func(ctx context.Context, i int) error {
		t.Fatal("a's body must never run: its precondition is false")
		return nil
	}))
	a.AddPrecondition(ScalarPredicate(func(ctx context.Context) (bool, error) { return false, nil }))
	c := b.DefineJob("c", "c", ExecutableFunc(noop))
	b.AddDependency(a, c, StatusSuccess)
	c.SetJoin(JoinAll)
	wf, err := b.Freeze([]JobRef{c})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	result, err := Schedule(context.Background(), wf, Options{})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if result.Aggregates["a"] != Failed {
		t.Errorf("a: got %v, want FAILED", result.Aggregates["a"])
	}
	if result.Aggregates["c"] != Cancelled {
		t.Errorf("c: got %v, want CANCELLED", result.Aggregates["c"])
	}
}

func TestScheduleArraySizeOneMatchesScalar(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(noop), ArraySize(1))
	wf, err := b.Freeze([]JobRef{a})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	result, err := Schedule(context.Background(), wf, Options{})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	states := result.Tasks["a"]
	if len(states) != 1 || states[0].Index != -1 {
		t.Fatalf("array_size=1 should behave exactly like a scalar job, got %+v", states)
	}
}

func TestScheduleEmitsWorkflowAndTaskEvents(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(noop))
	wf, err := b.Freeze([]JobRef{a})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	buf := emit.NewBufferedEmitter()
	result, err := Schedule(context.Background(), wf, Options{Emitter: buf})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	events := buf.History(result.RunID)
	var sawStart, sawFinish bool
	for _, ev := range events {
		if ev.Msg == emit.WorkflowStarted {
			sawStart = true
		}
		if ev.Msg == emit.WorkflowFinished {
			sawFinish = true
		}
	}
	if !sawStart || !sawFinish {
		t.Fatalf("expected workflow_started and workflow_finished events, got %+v", events)
	}
}

func TestScheduleCancellationOverridesSuccess(t *testing.T) {
	b := NewBuilder()
	started := make(chan struct{})
	release := make(chan struct{})
	a := b.DefineJob("a", "a", ExecutableFunc(func(ctx context.Context, i int) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))
	wf, err := b.Freeze([]JobRef{a})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}

	engine := NewEngine(wf, Options{})
	active, _ := ActiveSubgraph(wf, wf.Targets())
	done := make(chan *RunResult, 1)
	go func() {
		r, _ := engine.Run(context.Background(), active, nil)
		done <- r
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started")
	}
	engine.Cancel()
	close(release)

	select {
	case r := <-done:
		if r.Aggregates["a"] != Cancelled {
			t.Fatalf("cancelled engine should override success, got %v", r.Aggregates["a"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run never completed")
	}
}

package workflow

import (
	"context"
	"errors"
	"testing"
)

func noop(ctx context.Context, index int) error { return nil }

func TestBuilderDuplicateJob(t *testing.T) {
	b := NewBuilder()
	b.DefineJob("a", "a", ExecutableFunc(noop))
	b.DefineJob("a", "a", ExecutableFunc(noop))
	_, err := b.Freeze(nil)
	if !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("want ErrDuplicateJob, got %v", err)
	}
}

func TestBuilderDuplicateEdge(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(noop))
	c := b.DefineJob("c", "c", ExecutableFunc(noop))
	b.AddDependency(a, c, StatusSuccess)
	b.AddDependency(a, c, StatusAny)
	_, err := b.Freeze([]JobRef{c})
	if !errors.Is(err, ErrDuplicateEdge) {
		t.Fatalf("want ErrDuplicateEdge, got %v", err)
	}
}

func TestBuilderCycleRejection(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(noop))
	c := b.DefineJob("c", "c", ExecutableFunc(noop))
	b.AddDependency(a, c, StatusSuccess)
	b.AddDependency(c, a, StatusSuccess)
	_, err := b.Freeze([]JobRef{c})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("want ErrCycleDetected, got %v", err)
	}
}

func TestBuilderUnknownTarget(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(noop))
	ghost := JobRef{}
	_ = a
	wf, err := b.Freeze([]JobRef{ghost})
	if wf != nil || !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("want ErrUnknownTarget, got wf=%v err=%v", wf, err)
	}
}

func TestBuilderArraySizeValidation(t *testing.T) {
	b := NewBuilder()
	b.DefineJob("a", "a", ExecutableFunc(noop), ArraySize(0))
	if _, err := b.Freeze(nil); !errors.Is(err, ErrBadArraySpec) {
		t.Fatalf("want ErrBadArraySpec for array_size 0, got %v", err)
	}
}

func TestBuilderArrayThrottleValidation(t *testing.T) {
	b := NewBuilder()
	b.DefineJob("a", "a", ExecutableFunc(noop), ArraySize(4), ArrayThrottle(10))
	if _, err := b.Freeze(nil); !errors.Is(err, ErrBadArraySpec) {
		t.Fatalf("want ErrBadArraySpec for throttle > size, got %v", err)
	}
}

func TestBuilderPerTaskPredicateRequiresArrayJob(t *testing.T) {
	b := NewBuilder()
	a := b.DefineJob("a", "a", ExecutableFunc(noop))
	a.AddPrecondition(ArrayPredicate(func(ctx context.Context, i int) (bool, error) { return true, nil }))
	if _, err := b.Freeze([]JobRef{a}); !errors.Is(err, ErrInvalidPreds) {
		t.Fatalf("want ErrInvalidPreds, got %v", err)
	}
}

func TestBuilderFreezeIsDeterministic(t *testing.T) {
	build := func() (*Workflow, error) {
		b := NewBuilder()
		a := b.DefineJob("a", "a", ExecutableFunc(noop))
		bb := b.DefineJob("b", "b", ExecutableFunc(noop))
		c := b.DefineJob("c", "c", ExecutableFunc(noop))
		b.AddDependency(a, c, StatusSuccess)
		b.AddDependency(bb, c, StatusAny)
		return b.Freeze([]JobRef{c})
	}
	wf1, err1 := build()
	wf2, err2 := build()
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if len(wf1.Edges()) != len(wf2.Edges()) {
		t.Fatalf("edge count mismatch")
	}
	for i := range wf1.Edges() {
		if wf1.Edges()[i] != wf2.Edges()[i] {
			t.Fatalf("edge order differs at %d: %v vs %v", i, wf1.Edges()[i], wf2.Edges()[i])
		}
	}
}

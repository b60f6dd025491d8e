package workflow

import "context"

// Predicate is a side-effect-free gating or completion check attached to a
// job. It is typed as either scalar (applies to the whole job) or
// array-indexed (applies per array task), tagged explicitly at attach time
// systems languages should not
// infer the shape from a function signature.
type Predicate struct {
	kind    predicateKind
	scalar  func(ctx context.Context) (bool, error)
	indexed func(ctx context.Context, index int) (bool, error)
}

type predicateKind int

const (
	predicateScalar predicateKind = iota
	predicateIndexed
)

// ScalarPredicate wraps a nullary predicate that applies to the whole job.
func ScalarPredicate(fn func(ctx context.Context) (bool, error)) Predicate {
	return Predicate{kind: predicateScalar, scalar: fn}
}

// ArrayPredicate wraps a unary-over-index predicate for array jobs.
func ArrayPredicate(fn func(ctx context.Context, index int) (bool, error)) Predicate {
	return Predicate{kind: predicateIndexed, indexed: fn}
}

// IsArray reports whether this predicate expects a task index.
func (p Predicate) IsArray() bool { return p.kind == predicateIndexed }

// Eval evaluates the predicate. index is ignored for scalar predicates. Any
// returned error is treated by the caller as "predicate does not hold" per
// here.
func (p Predicate) Eval(ctx context.Context, index int) (bool, error) {
	if p.kind == predicateIndexed {
		return p.indexed(ctx, index)
	}
	return p.scalar(ctx)
}

// evalAll evaluates predicates in declaration order, stopping at the first
// false or erroring predicate. It reports the index of the predicate that
// failed (or -1 if all held) and the triggering error, if any.
func evalAll(ctx context.Context, preds []Predicate, taskIndex int) (ok bool, failedAt int, err error) {
	for i, p := range preds {
		held, perr := p.Eval(ctx, taskIndex)
		if perr != nil {
			return false, i, perr
		}
		if !held {
			return false, i, nil
		}
	}
	return true, -1, nil
}

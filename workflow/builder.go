package workflow

import "fmt"

// Builder accumulates jobs and edges in any declaration order and freezes
// to an immutable Workflow. This is the Go-native replacement for the
// decorator-authored graph of the system this mirrors: JobRef is the
// only handle that accepts further attachments, which removes the
// "lowest decorator must be @job" ordering trap entirely.
type Builder struct {
	jobs      map[string]*Job
	order     []string
	edges     map[[2]string]Edge
	edgeOrder [][2]string
	outgoing  map[string][]string
	err       error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		jobs:     make(map[string]*Job),
		edges:    make(map[[2]string]Edge),
		outgoing: make(map[string][]string),
	}
}

// JobRef is an opaque handle to a job under construction. Only a JobRef
// accepts further attachments (Join, preconditions, postconditions).
type JobRef struct {
	b  *Builder
	id string
}

// ID returns the referenced job's id.
func (r JobRef) ID() string { return r.id }

// JobOption configures a job at definition time.
type JobOption func(*Job)

// ArraySize sets the job's fan-out width. A value of 1 means scalar; a value
// below 1 is rejected with ErrBadArraySpec, surfaced from Freeze.
func ArraySize(n int) JobOption {
	return func(j *Job) { j.arraySize = n }
}

// ArrayThrottle caps concurrent array tasks on cluster backends.
func ArrayThrottle(n int) JobOption {
	return func(j *Job) { j.arrayThrottle = n }
}

// WithResources attaches scheduler hints to a job.
func WithResources(r Resources) JobOption {
	return func(j *Job) { j.resources = r }
}

// MarkSkipped marks a job as completed-without-running.
func MarkSkipped() JobOption {
	return func(j *Job) { j.skipped = true }
}

// DefineJob registers a new job and returns its handle. Fails (the error is
// retained and surfaced from Freeze) if id collides with an existing job.
func (b *Builder) DefineJob(id, name string, body Executable, opts ...JobOption) JobRef {
	if _, exists := b.jobs[id]; exists {
		b.fail(fmt.Errorf("%w: %q", ErrDuplicateJob, id))
		return JobRef{b: b, id: id}
	}
	j := &Job{
		id:        id,
		name:      name,
		body:      body,
		arraySize: 1,
		join:      JoinAll,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.arraySize < 1 {
		b.fail(fmt.Errorf("%w: job %q array_size must be >= 1", ErrBadArraySpec, id))
	}
	if j.arrayThrottle != 0 && (j.arrayThrottle < 1 || j.arrayThrottle > j.arraySize) {
		b.fail(fmt.Errorf("%w: job %q array_throttle must be in [1, array_size]", ErrBadArraySpec, id))
	}
	b.jobs[id] = j
	b.order = append(b.order, id)
	return JobRef{b: b, id: id}
}

// SetJoin sets the job's join policy.
func (r JobRef) SetJoin(j Join) JobRef {
	if job, ok := r.b.jobs[r.id]; ok {
		job.join = j
	}
	return r
}

// AddPrecondition appends a gating predicate. Per
// invariant 3, an array-shaped predicate is only valid on array jobs.
func (r JobRef) AddPrecondition(p Predicate) JobRef {
	r.b.attachPredicate(r.id, p, false)
	return r
}

// AddPostcondition appends a completion predicate.
func (r JobRef) AddPostcondition(p Predicate) JobRef {
	r.b.attachPredicate(r.id, p, true)
	return r
}

func (b *Builder) attachPredicate(id string, p Predicate, post bool) {
	job, ok := b.jobs[id]
	if !ok {
		b.fail(fmt.Errorf("%w: %q", ErrUnknownJob, id))
		return
	}
	if p.IsArray() && !job.IsArray() {
		b.fail(fmt.Errorf("%w: job %q", ErrInvalidPreds, id))
		return
	}
	if post {
		job.postconditions = append(job.postconditions, p)
	} else {
		job.preconditions = append(job.preconditions, p)
	}
}

// AddDependency adds an edge (from, to, status). Fails with ErrUnknownJob,
// ErrDuplicateEdge, or ErrCycleDetected.
func (b *Builder) AddDependency(from, to JobRef, status Status) {
	if _, ok := b.jobs[from.id]; !ok {
		b.fail(fmt.Errorf("%w: %q", ErrUnknownJob, from.id))
		return
	}
	if _, ok := b.jobs[to.id]; !ok {
		b.fail(fmt.Errorf("%w: %q", ErrUnknownJob, to.id))
		return
	}
	key := [2]string{from.id, to.id}
	if _, exists := b.edges[key]; exists {
		b.fail(fmt.Errorf("%w: %q -> %q", ErrDuplicateEdge, from.id, to.id))
		return
	}
	if detectCycle(b.outgoing, from.id, to.id) {
		b.fail(fmt.Errorf("%w: %q -> %q", ErrCycleDetected, from.id, to.id))
		return
	}
	b.edges[key] = Edge{From: from.id, To: to.id, Status: status}
	b.edgeOrder = append(b.edgeOrder, key)
	b.outgoing[from.id] = append(b.outgoing[from.id], to.id)
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Freeze validates that every target exists and, if the builder
// accumulated no errors, returns the immutable Workflow.
func (b *Builder) Freeze(targets []JobRef) (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, ok := b.jobs[t.id]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, t.id)
		}
		ids = append(ids, t.id)
	}

	edges := make([]Edge, 0, len(b.edgeOrder))
	byTo := make(map[string][]Edge)
	for _, key := range b.edgeOrder {
		e := b.edges[key]
		edges = append(edges, e)
		byTo[e.To] = append(byTo[e.To], e)
	}

	jobs := make(map[string]*Job, len(b.jobs))
	for id, j := range b.jobs {
		jobs[id] = j
	}

	return &Workflow{jobs: jobs, edges: edges, byTo: byTo, targets: ids}, nil
}

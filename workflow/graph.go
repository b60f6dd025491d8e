package workflow

// Workflow is an immutable, frozen DAG of jobs and edges, plus the chosen
// schedule targets. It is produced only by Builder.Freeze and is treated as
// read-only for the lifetime of any execution engine running against it.
type Workflow struct {
	jobs    map[string]*Job
	edges   []Edge
	byTo    map[string][]Edge // incoming edges indexed by To, for traversal
	targets []string
}

// Job looks up a job by id. The second return value is false if no such
// job exists.
func (w *Workflow) Job(id string) (*Job, bool) {
	j, ok := w.jobs[id]
	return j, ok
}

// Jobs returns all jobs in the workflow, in no particular order.
func (w *Workflow) Jobs() []*Job {
	out := make([]*Job, 0, len(w.jobs))
	for _, j := range w.jobs {
		out = append(out, j)
	}
	return out
}

// Edges returns all edges in the workflow.
func (w *Workflow) Edges() []Edge {
	return w.edges
}

// Targets returns the job ids this workflow was frozen with.
func (w *Workflow) Targets() []string {
	return w.targets
}

// IncomingEdges returns the edges terminating at jobID.
func (w *Workflow) IncomingEdges(jobID string) []Edge {
	return w.byTo[jobID]
}

// detectCycle runs an O(V+E) DFS from `to` to see if `to` can already
// reach `from`, which is the condition under which adding edge (from, to)
// would create a cycle.
func detectCycle(outgoing map[string][]string, from, to string) bool {
	if from == to {
		return true
	}
	visited := make(map[string]bool)
	var stack []string
	stack = append(stack, to)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == from {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		stack = append(stack, outgoing[n]...)
	}
	return false
}

package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/corvidlabs/dagflow/workflow/emit"
)

// dummyExecutable wraps a job's real body so BackendDummy can run a
// workflow's shape (join/prune/fan-out/cancellation) without executing real
// bodies: each task sleeps a deterministic-per-task duration bounded by
// DummySleepMax and emits start/end events, grounded in a
// cost-simulation node wrapper used for dry-run graph walks.
type dummyExecutable struct {
	runID    string
	jobID    string
	name     string
	sleepMax time.Duration
	emitter  emit.Emitter
}

func (d dummyExecutable) Invoke(ctx context.Context, index int) error {
	d.emitter.Emit(emit.Event{RunID: d.runID, JobID: d.jobID, Index: index, Msg: emit.TaskStarted,
		Meta: map[string]any{"name": d.name, "dummy": true}})

	sleep := deterministicSleep(d.jobID, index, d.sleepMax)
	select {
	case <-time.After(sleep):
	case <-ctx.Done():
		return ctx.Err()
	}
	d.emitter.Emit(emit.Event{RunID: d.runID, JobID: d.jobID, Index: index, Msg: emit.TaskFinished,
		Meta: map[string]any{"name": d.name, "dummy": true}})
	return nil
}

// deterministicSleep derives a repeatable pseudo-random duration in
// [0, max) from (jobID, index), so repeated dummy runs of the same
// workflow produce the same timing without a shared *rand.Rand.
func deterministicSleep(jobID string, index int, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	h := sha256.Sum256([]byte(jobID + ":" + itoa(index)))
	seed := int64(binary.BigEndian.Uint64(h[:8]))
	r := rand.New(rand.NewSource(seed))
	return time.Duration(r.Int63n(int64(max)))
}

func itoa(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// wrapDummy rewrites every job body in wf with a dummyExecutable, returning
// a shallow copy of the workflow safe to run through the same Engine used
// for BackendAsync.
func wrapDummy(wf *Workflow, runID string, opts Options) *Workflow {
	jobs := make(map[string]*Job, len(wf.jobs))
	for id, j := range wf.jobs {
		cp := *j
		cp.body = dummyExecutable{runID: runID, jobID: j.ID(), name: j.Name(), sleepMax: opts.DummySleepMax, emitter: opts.Emitter}
		jobs[id] = &cp
	}
	return &Workflow{jobs: jobs, edges: wf.edges, byTo: wf.byTo, targets: wf.targets}
}

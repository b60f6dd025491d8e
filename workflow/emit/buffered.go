package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, organized by run ID, with query
// support. Used heavily in tests to assert on event ordering, and as a
// lightweight in-process observability backend for demos.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[e.RunID] = append(b.events[e.RunID], e)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		b.Emit(e)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// History returns a copy of all events recorded for runID, in emission
// order.
func (b *BufferedEmitter) History(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.events[runID]
	out := make([]Event, len(src))
	copy(out, src)
	return out
}

// Clear discards all events recorded for runID.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, runID)
}

package emit

import "context"

// Emitter receives and processes observability events from workflow
// execution. Implementations should be non-blocking and thread-safe: they
// may be called concurrently from multiple task goroutines, and must never
// slow down or panic the engine.
type Emitter interface {
	// Emit sends a single event to the configured backend.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, preserving order.
	// Returns an error only on catastrophic failures; individual event
	// delivery failures should be logged internally, not returned.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events are delivered, or ctx expires.
	Flush(ctx context.Context) error
}

// NullEmitter discards every event. It is the default when no emitter is
// configured.
type NullEmitter struct{}

func (NullEmitter) Emit(Event)                                 {}
func (NullEmitter) EmitBatch(context.Context, []Event) error    { return nil }
func (NullEmitter) Flush(context.Context) error                 { return nil }

// MultiEmitter fans out every event to each of its members.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(e Event) {
	for _, em := range m {
		em.Emit(e)
	}
}

func (m MultiEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, em := range m {
		if err := em.EmitBatch(ctx, events); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiEmitter) Flush(ctx context.Context) error {
	for _, em := range m {
		if err := em.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

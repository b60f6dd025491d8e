package emit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into a zero-duration OpenTelemetry span,
// suitable for feeding a tracing backend (Jaeger, Zipkin, ...). Errors
// recorded in Meta["error"] mark the span as failed.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter builds an emitter that creates spans via tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (e *OTelEmitter) Emit(ev Event) {
	_, span := e.tracer.Start(context.Background(), ev.Msg)
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", ev.RunID),
		attribute.String("job_id", ev.JobID),
		attribute.Int("index", ev.Index),
	)
	for k, v := range ev.Meta {
		if s, ok := v.(string); ok {
			span.SetAttributes(attribute.String(k, s))
			if k == "error" {
				span.SetStatus(codes.Error, s)
			}
		}
	}
}

func (e *OTelEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, ev := range events {
		e.Emit(ev)
	}
	return nil
}

func (e *OTelEmitter) Flush(context.Context) error { return nil }

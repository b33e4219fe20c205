package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context of a span in the form it is persisted, for example
// next to an outbox row until the publisher picks it up.
type TraceContext struct {
	Parent string
	State  string
}

// CaptureTraceContext serialises the active span context of ctx.
func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier["traceparent"], State: carrier["tracestate"]}
}

func (tc TraceContext) IsZero() bool { return tc.Parent == "" && tc.State == "" }

// Restore returns ctx carrying tc as its remote parent span.
func (tc TraceContext) Restore(ctx context.Context) context.Context {
	if tc.IsZero() {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": tc.Parent,
		"tracestate":  tc.State,
	})
}

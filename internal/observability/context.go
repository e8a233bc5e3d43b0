package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// DetachTraceContextFrom returns baseCtx carrying the span context of src.
// Background job runs use it to keep the server's shutdown cancellation while
// linking their spans to the request that started them.
func DetachTraceContextFrom(src, baseCtx context.Context) context.Context {
	sc := trace.SpanContextFromContext(src)
	if !sc.IsValid() {
		return baseCtx
	}
	return trace.ContextWithRemoteSpanContext(baseCtx, sc)
}

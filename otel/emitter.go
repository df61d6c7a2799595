package otel

import (
	"github.com/petal-labs/shelfwright/orchestrator"
)

// EnrichEmitter wraps an EventHandler with OpenTelemetry trace context.
// Events belonging to a running build get the TraceID and SpanID of its
// build span. Other events pass through unchanged.
func EnrichEmitter(emit orchestrator.EventHandler, tracing *TracingHandler) orchestrator.EventHandler {
	return func(e orchestrator.Event) {
		if e.RunID != "" {
			sc := tracing.ActiveBuildSpanContext(e.RunID)
			if sc.IsValid() {
				e.TraceID = sc.TraceID().String()
				e.SpanID = sc.SpanID().String()
			}
		}
		emit(e)
	}
}

// Handlers returns one EventHandler feeding both the metrics and the
// tracing handler. Either may be nil. Tracing runs first so the build span
// exists before emitters downstream look it up.
func Handlers(metrics *MetricsHandler, tracing *TracingHandler) orchestrator.EventHandler {
	var hs []orchestrator.EventHandler
	if tracing != nil {
		hs = append(hs, tracing.Handle)
	}
	if metrics != nil {
		hs = append(hs, metrics.Handle)
	}
	return orchestrator.MultiEventHandler(hs...)
}

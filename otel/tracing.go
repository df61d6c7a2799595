// Package otel provides OpenTelemetry integration for layout builds and
// definition executions.
package otel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/shelfwright/orchestrator"
)

// TracingHandler translates orchestrator events into OpenTelemetry spans.
// Each build gets a root span; document and leaf events are recorded as
// span events on it. Dispatched commands get a span of their own.
type TracingHandler struct {
	tracer trace.Tracer

	mu         sync.RWMutex
	buildSpans map[string]trace.Span // runID -> span
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from orchestrator events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:     tracer,
		buildSpans: make(map[string]trace.Span),
	}
}

// Handle processes an orchestrator event and creates or ends spans accordingly.
func (h *TracingHandler) Handle(e orchestrator.Event) {
	switch e.Kind {
	case orchestrator.EventBuildStarted:
		h.handleBuildStarted(e)
	case orchestrator.EventDocumentLoaded, orchestrator.EventDocumentSkipped,
		orchestrator.EventLeafBuilt, orchestrator.EventLeafSkipped:
		h.handleBuildEvent(e)
	case orchestrator.EventBuildFinished:
		h.handleBuildFinished(e)
	case orchestrator.EventCommandExecuted, orchestrator.EventCommandFailed:
		h.handleCommand(e)
	}
}

func (h *TracingHandler) handleBuildStarted(e orchestrator.Event) {
	_, span := h.tracer.Start(context.Background(), "build:"+e.RunID,
		trace.WithAttributes(
			attribute.String("shelfwright.run_id", e.RunID),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.buildSpans[e.RunID] = span
	h.mu.Unlock()
}

// handleBuildEvent adds a span event to the running build span.
func (h *TracingHandler) handleBuildEvent(e orchestrator.Event) {
	h.mu.RLock()
	span, ok := h.buildSpans[e.RunID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("shelfwright.family", string(e.Family)),
	}
	if e.NodeID != "" {
		attrs = append(attrs,
			attribute.String("shelfwright.node_id", e.NodeID),
			attribute.String("shelfwright.node_kind", string(e.NodeKind)),
		)
	}
	for _, key := range []string{"source", "type", "error"} {
		if s := payloadString(e, key); s != "" {
			attrs = append(attrs, attribute.String("shelfwright."+key, s))
		}
	}

	span.AddEvent(string(e.Kind), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

func (h *TracingHandler) handleBuildFinished(e orchestrator.Event) {
	h.mu.Lock()
	span, ok := h.buildSpans[e.RunID]
	if ok {
		delete(h.buildSpans, e.RunID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("shelfwright.duration", e.Elapsed.String()),
	}
	for key, v := range e.Payload {
		if n, ok := v.(int); ok {
			attrs = append(attrs, attribute.Int("shelfwright."+key, n))
		}
	}
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(e.Time))
}

// handleCommand records a finished command as a span ending at the event
// time and lasting its elapsed duration.
func (h *TracingHandler) handleCommand(e orchestrator.Event) {
	_, span := h.tracer.Start(context.Background(), "command:"+e.NodeID,
		trace.WithAttributes(
			attribute.String("shelfwright.plugin_id", e.NodeID),
		),
		trace.WithTimestamp(e.Time.Add(-e.Elapsed)),
	)

	if e.Kind == orchestrator.EventCommandFailed {
		errMsg := payloadString(e, "error")
		if errMsg == "" {
			errMsg = "command failed"
		}
		if code := payloadString(e, "error_code"); code != "" {
			span.SetAttributes(attribute.String("shelfwright.error_code", code))
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg), trace.WithTimestamp(e.Time))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Time))
}

// ActiveBuildSpanContext returns the SpanContext of the running build
// identified by runID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveBuildSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.buildSpans[runID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

package otel_test

import (
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	swotel "github.com/petal-labs/shelfwright/otel"
	"github.com/petal-labs/shelfwright/orchestrator"
)

func TestEnrichEmitter_SetsTraceContext(t *testing.T) {
	_, tp := newTestTracer()
	tracing := swotel.NewTracingHandler(tp.Tracer("test"))

	var captured []orchestrator.Event
	emit := swotel.EnrichEmitter(func(e orchestrator.Event) {
		captured = append(captured, e)
	}, tracing)

	tracing.Handle(orchestrator.Event{Kind: orchestrator.EventBuildStarted, RunID: "run-1", Time: time.Now()})
	emit(orchestrator.NewEvent(orchestrator.EventLeafBuilt, "run-1"))
	emit(orchestrator.NewEvent(orchestrator.EventCommandExecuted, ""))

	if len(captured) != 2 {
		t.Fatalf("expected 2 events, got %d", len(captured))
	}
	sc := tracing.ActiveBuildSpanContext("run-1")
	if captured[0].TraceID != sc.TraceID().String() || captured[0].SpanID != sc.SpanID().String() {
		t.Errorf("leaf event trace = %s/%s, want %s/%s",
			captured[0].TraceID, captured[0].SpanID, sc.TraceID(), sc.SpanID())
	}
	if captured[1].TraceID != "" {
		t.Errorf("command event should pass through unchanged, got trace %q", captured[1].TraceID)
	}
}

func TestHandlers_FeedsBoth(t *testing.T) {
	reader, mp := newTestMeter()
	exporter, tp := newTestTracer()

	metrics, err := swotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}
	handle := swotel.Handlers(metrics, swotel.NewTracingHandler(tp.Tracer("test")))

	handle(orchestrator.NewEvent(orchestrator.EventBuildStarted, "run-1"))
	handle(orchestrator.NewEvent(orchestrator.EventBuildFinished, "run-1").WithElapsed(time.Second))

	if got := len(exporter.GetSpans()); got != 1 {
		t.Errorf("expected 1 span, got %d", got)
	}
	m := findMetric(collectMetrics(t, reader), "shelfwright.build.duration")
	if m == nil {
		t.Fatal("build duration not recorded")
	}
	if hist := m.Data.(metricdata.Histogram[float64]); len(hist.DataPoints) != 1 {
		t.Errorf("expected 1 data point, got %d", len(hist.DataPoints))
	}

	// nil handlers are skipped
	swotel.Handlers(nil, nil)(orchestrator.NewEvent(orchestrator.EventBuildStarted, "run-2"))
}

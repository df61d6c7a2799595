package otel_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/petal-labs/shelfwright/core"
	swotel "github.com/petal-labs/shelfwright/otel"
	"github.com/petal-labs/shelfwright/orchestrator"
)

// newTestMeter returns a meter backed by a manual reader for collecting metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumTotal(t *testing.T, rm *metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64] data for %s, got %T", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsHandler_LeafCounters(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := swotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	leaf := func(kind orchestrator.EventKind, id, itemType string) orchestrator.Event {
		return orchestrator.NewEvent(kind, "run-1").
			WithFamily(core.FamilyMenu).
			WithNode(id, core.NodeKindDefinition).
			WithPayload("type", itemType)
	}
	h.Handle(leaf(orchestrator.EventLeafBuilt, "open_scene", "definition"))
	h.Handle(leaf(orchestrator.EventLeafBuilt, "save_scene", "definition"))
	h.Handle(leaf(orchestrator.EventLeafBuilt, "draft", "render_preset"))
	h.Handle(leaf(orchestrator.EventLeafSkipped, "mystery", "toolbar_widget"))
	h.Handle(orchestrator.NewEvent(orchestrator.EventDocumentSkipped, "run-1").WithFamily(core.FamilyShelf))

	rm := collectMetrics(t, reader)

	if got := sumTotal(t, rm, "shelfwright.leaf.built"); got != 3 {
		t.Errorf("leaf.built = %d, want 3", got)
	}
	built := findMetric(rm, "shelfwright.leaf.built").Data.(metricdata.Sum[int64])
	if len(built.DataPoints) != 2 {
		t.Errorf("expected one data point per item type, got %d", len(built.DataPoints))
	}
	if got := sumTotal(t, rm, "shelfwright.leaf.skipped"); got != 1 {
		t.Errorf("leaf.skipped = %d, want 1", got)
	}
	if got := sumTotal(t, rm, "shelfwright.document.skipped"); got != 1 {
		t.Errorf("document.skipped = %d, want 1", got)
	}
}

func TestMetricsHandler_BuildDuration(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := swotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(orchestrator.NewEvent(orchestrator.EventBuildFinished, "run-1").WithElapsed(2 * time.Second))

	rm := collectMetrics(t, reader)
	m := findMetric(rm, "shelfwright.build.duration")
	if m == nil {
		t.Fatal("shelfwright.build.duration metric not found")
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64] data, got %T", m.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("unexpected data points: %+v", hist.DataPoints)
	}
	if hist.DataPoints[0].Sum != 2 {
		t.Errorf("expected sum 2s, got %f", hist.DataPoints[0].Sum)
	}
}

func TestMetricsHandler_Commands(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := swotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(orchestrator.NewEvent(orchestrator.EventCommandExecuted, "").
		WithNode("open_scene", "").WithElapsed(10 * time.Millisecond))
	h.Handle(orchestrator.NewEvent(orchestrator.EventCommandFailed, "").
		WithNode("bevel", "").
		WithElapsed(5 * time.Millisecond).
		WithPayload("error_code", "EXECUTION_FAILED"))

	rm := collectMetrics(t, reader)
	if got := sumTotal(t, rm, "shelfwright.command.executions"); got != 2 {
		t.Errorf("command.executions = %d, want 2", got)
	}

	hist := findMetric(rm, "shelfwright.command.duration").Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 2 {
		t.Errorf("expected 2 histogram data points, got %d", len(hist.DataPoints))
	}
}

func TestMetricsHandler_IgnoresOtherEvents(t *testing.T) {
	reader, mp := newTestMeter()
	h, err := swotel.NewMetricsHandler(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(orchestrator.NewEvent(orchestrator.EventBuildStarted, "run-1"))
	h.Handle(orchestrator.NewEvent(orchestrator.EventDocumentLoaded, "run-1"))

	rm := collectMetrics(t, reader)
	for _, scope := range rm.ScopeMetrics {
		if len(scope.Metrics) != 0 {
			t.Errorf("expected no recorded metrics, got %d", len(scope.Metrics))
		}
	}
}

package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/petal-labs/shelfwright/orchestrator"
)

// MetricsHandler translates orchestrator events into OpenTelemetry metrics.
// It counts built and skipped leaves, skipped documents and dispatched
// commands, and records build and command durations.
type MetricsHandler struct {
	leavesBuilt      metric.Int64Counter
	leavesSkipped    metric.Int64Counter
	documentsSkipped metric.Int64Counter
	commands         metric.Int64Counter
	commandDuration  metric.Float64Histogram
	buildDuration    metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to create
// instruments for recording layout build metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	built, err := meter.Int64Counter("shelfwright.leaf.built",
		metric.WithDescription("Number of leaves handed to the host"),
	)
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter("shelfwright.leaf.skipped",
		metric.WithDescription("Number of leaves left out of the host build"),
	)
	if err != nil {
		return nil, err
	}

	docs, err := meter.Int64Counter("shelfwright.document.skipped",
		metric.WithDescription("Number of layout documents that failed to load"),
	)
	if err != nil {
		return nil, err
	}

	commands, err := meter.Int64Counter("shelfwright.command.executions",
		metric.WithDescription("Number of dispatched commands"),
	)
	if err != nil {
		return nil, err
	}

	cmdDur, err := meter.Float64Histogram("shelfwright.command.duration",
		metric.WithDescription("Duration of dispatched commands in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	buildDur, err := meter.Float64Histogram("shelfwright.build.duration",
		metric.WithDescription("Duration of a layout build in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		leavesBuilt:      built,
		leavesSkipped:    skipped,
		documentsSkipped: docs,
		commands:         commands,
		commandDuration:  cmdDur,
		buildDuration:    buildDur,
	}, nil
}

// Handle records the metrics for one event. It has the
// orchestrator.EventHandler signature.
func (h *MetricsHandler) Handle(e orchestrator.Event) {
	ctx := context.Background()
	switch e.Kind {
	case orchestrator.EventLeafBuilt:
		h.leavesBuilt.Add(ctx, 1, leafAttrs(e))
	case orchestrator.EventLeafSkipped:
		h.leavesSkipped.Add(ctx, 1, leafAttrs(e))
	case orchestrator.EventDocumentSkipped:
		h.documentsSkipped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("family", string(e.Family)),
		))
	case orchestrator.EventCommandExecuted, orchestrator.EventCommandFailed:
		h.handleCommand(ctx, e)
	case orchestrator.EventBuildFinished:
		h.buildDuration.Record(ctx, e.Elapsed.Seconds(), metric.WithAttributes(
			attribute.String("run_id", e.RunID),
		))
	}
}

func (h *MetricsHandler) handleCommand(ctx context.Context, e orchestrator.Event) {
	attrs := []attribute.KeyValue{
		attribute.String("plugin_id", e.NodeID),
		attribute.Bool("success", e.Kind == orchestrator.EventCommandExecuted),
	}
	if code := payloadString(e, "error_code"); code != "" {
		attrs = append(attrs, attribute.String("error_code", code))
	}
	opts := metric.WithAttributes(attrs...)
	h.commands.Add(ctx, 1, opts)
	h.commandDuration.Record(ctx, e.Elapsed.Seconds(), opts)
}

func leafAttrs(e orchestrator.Event) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("family", string(e.Family)),
		attribute.String("node_kind", string(e.NodeKind)),
		attribute.String("type", payloadString(e, "type")),
	)
}

func payloadString(e orchestrator.Event, key string) string {
	if v, ok := e.Payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

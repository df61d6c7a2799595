package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/shelfwright/tool"
)

// DefinitionObserver records definition executions and teardowns into
// OpenTelemetry.
type DefinitionObserver struct {
	tracer trace.Tracer

	executions metric.Int64Counter
	teardowns  metric.Int64Counter
	latency    metric.Float64Histogram
}

// NewDefinitionObserver creates an observer bound to the provided meter/tracer.
// tracer may be nil.
func NewDefinitionObserver(meter metric.Meter, tracer trace.Tracer) (*DefinitionObserver, error) {
	executions, err := meter.Int64Counter(
		"shelfwright.definition.executions",
		metric.WithDescription("Number of definition executions"),
	)
	if err != nil {
		return nil, err
	}
	teardowns, err := meter.Int64Counter(
		"shelfwright.definition.teardowns",
		metric.WithDescription("Number of definition teardown hooks run"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"shelfwright.definition.latency",
		metric.WithDescription("Definition execution latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DefinitionObserver{
		tracer:     tracer,
		executions: executions,
		teardowns:  teardowns,
		latency:    latency,
	}, nil
}

// ObserveExecute records one execution result.
func (o *DefinitionObserver) ObserveExecute(observation tool.ExecutionObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("plugin_id", observation.PluginID),
		attribute.String("runner", observation.Runner),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.executions.Add(ctx, 1, options)
	o.latency.Record(ctx, (time.Duration(observation.DurationMS) * time.Millisecond).Seconds(), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "definition.execute", trace.WithAttributes(attrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, observation.ErrorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ObserveTeardown records one teardown hook result.
func (o *DefinitionObserver) ObserveTeardown(observation tool.TeardownObservation) {
	if o == nil {
		return
	}
	o.teardowns.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("plugin_id", observation.PluginID),
		attribute.Bool("success", observation.Success),
	))
}

var _ tool.Observer = (*DefinitionObserver)(nil)

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/petal-labs/shelfwright/config"
	swotel "github.com/petal-labs/shelfwright/otel"
	"github.com/petal-labs/shelfwright/orchestrator"
	"github.com/petal-labs/shelfwright/tool"
)

// session bundles what every command needs: resolved settings, a logger,
// telemetry and a live orchestrator.
type session struct {
	settings   config.Config
	configPath string
	logger     *slog.Logger
	orch       *orchestrator.Orchestrator

	shutdownTracing func(context.Context) error
}

// loadSettings resolves the config file and environment for cmd.
func loadSettings(cmd *cobra.Command) (config.Config, string, error) {
	explicit, _ := cmd.Flags().GetString("config")
	if explicit != "" {
		if _, err := os.Stat(explicit); errors.Is(err, os.ErrNotExist) {
			return config.Config{}, "", exitError(exitFileNotFound, "config file not found: %s", explicit)
		}
	}
	settings, path, err := config.Load(explicit)
	if err != nil {
		return settings, "", exitError(exitConfig, "loading config: %v", err)
	}
	return settings, path, nil
}

// openSession loads settings, installs telemetry and creates the
// orchestrator. events, if set, receives every orchestrator event
// enriched with the build's trace context. Callers must close the session.
func openSession(cmd *cobra.Command, events orchestrator.EventHandler) (*session, error) {
	settings, path, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	s := &session{settings: settings, configPath: path, logger: newLogger(cmd)}
	if path != "" {
		s.logger.Debug("using config file", "path", path)
	}

	ctx := commandContext(cmd)
	s.shutdownTracing, err = setupTracing(ctx, cmd)
	if err != nil {
		return nil, exitError(exitConfig, "configuring tracing: %v", err)
	}

	meter := otelapi.GetMeterProvider().Meter("shelfwright")
	tracer := otelapi.GetTracerProvider().Tracer("shelfwright")

	metrics, err := swotel.NewMetricsHandler(meter)
	if err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	observer, err := swotel.NewDefinitionObserver(meter, tracer)
	if err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("initializing definition observability: %w", err)
	}
	tracing := swotel.NewTracingHandler(tracer)

	handler := swotel.Handlers(metrics, tracing)
	if events != nil {
		handler = orchestrator.MultiEventHandler(handler, swotel.EnrichEmitter(events, tracing))
	}

	s.orch, err = orchestrator.New(ctx, orchestrator.Config{
		Settings: settings,
		Natives:  builtinNatives(s.logger),
		Observer: observer,
		Events:   handler,
		Logger:   s.logger,
	})
	if err != nil {
		s.close(ctx)
		return nil, exitError(exitRuntime, "starting orchestrator: %v", err)
	}
	return s, nil
}

// close tears the orchestrator down and flushes telemetry.
func (s *session) close(ctx context.Context) {
	if s.orch != nil && !s.orch.Teardown(ctx) {
		s.logger.Warn("teardown finished with errors")
	}
	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.Warn("flushing traces", "error", err)
		}
	}
}

// setupTracing installs an OTLP/HTTP trace exporter when --otlp-endpoint
// is set. The returned function flushes and stops it.
func setupTracing(ctx context.Context, cmd *cobra.Command) (func(context.Context) error, error) {
	endpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	insecure, _ := cmd.Flags().GetBool("otlp-insecure")

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otelapi.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// builtinNatives are the native functions definition manifests can bind
// to from the command line.
func builtinNatives(logger *slog.Logger) tool.Natives {
	return tool.Natives{
		"echo": func(ctx context.Context, args map[string]any) (map[string]any, error) {
			out := make(map[string]any, len(args))
			for k, v := range args {
				out[k] = v
			}
			return out, nil
		},
		"log": func(ctx context.Context, args map[string]any) (map[string]any, error) {
			logger.Info("log definition invoked", "arguments", args)
			return nil, nil
		},
	}
}

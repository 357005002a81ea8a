package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Options selects where traces are exported
type Options struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
}

// Setup installs a global tracer provider exporting over OTLP/gRPC. Without an
// endpoint nothing is installed and the returned shutdown does nothing.
func Setup(ctx context.Context, opts Options, logger *zap.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if opts.Endpoint == "" {
		return noop
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		logger.Warn("Failed to create trace exporter, tracing disabled", zap.Error(err))
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(opts.ServiceName)))
	if err != nil {
		logger.Warn("Failed to build trace resource", zap.Error(err))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	logger.Debug("Tracing enabled", zap.String("endpoint", opts.Endpoint))

	return provider.Shutdown
}

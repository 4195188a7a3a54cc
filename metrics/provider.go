package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ExportConfig configures OTLP export of the recorded metrics.
type ExportConfig struct {
	ServiceName string
	Endpoint    string // e.g. "localhost:4317"; empty disables export
	Insecure    bool
	Interval    time.Duration
}

// Setup installs a global meter provider exporting to cfg.Endpoint and returns
// a Recorder on it together with the provider's shutdown function. With no
// endpoint it returns a Recorder on the current global provider and a no-op
// shutdown.
func Setup(ctx context.Context, cfg ExportConfig) (*Recorder, func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		r, err := Default()
		return r, func(context.Context) error { return nil }, err
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval),
		)),
	)
	otel.SetMeterProvider(provider)

	r, err := New(provider.Meter(instrumentationName))
	if err != nil {
		provider.Shutdown(ctx)
		return nil, nil, err
	}
	return r, provider.Shutdown, nil
}

// Package telemetry installs the global OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/go-ports/storefront/internal/config"
)

// Shutdown flushes and stops whatever Setup installed.
type Shutdown func(context.Context) error

func newResource(serviceName, serviceVersion string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)
}

// Setup installs a meter provider, and a tracer provider exporting over OTLP
// gRPC when cfg.OTLPEndpoint is set. Without an endpoint spans stay no-op.
func Setup(ctx context.Context, cfg config.TelemetryConfig, serviceVersion string) (Shutdown, error) {
	var shutdowns []Shutdown

	if cfg.OTLPEndpoint != "" {
		stop, err := InitTracerProvider(ctx, cfg.OTLPEndpoint, cfg.ServiceName, serviceVersion)
		if err != nil {
			return nil, err
		}
		shutdowns = append(shutdowns, stop)
	}

	_, stop := InitMeterProvider(cfg.ServiceName, serviceVersion)
	shutdowns = append(shutdowns, stop)

	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}, nil
}

// InitTracerProvider exports spans to an OTLP gRPC collector at endpoint.
func InitTracerProvider(ctx context.Context, endpoint, serviceName, serviceVersion string) (Shutdown, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(newResource(serviceName, serviceVersion)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// InitMeterProvider installs a meter provider read on demand. The returned
// shutdown logs the final counter values at debug level before stopping.
func InitMeterProvider(serviceName, serviceVersion string) (*sdkmetric.ManualReader, Shutdown) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(newResource(serviceName, serviceVersion)),
	)
	otel.SetMeterProvider(mp)

	return reader, func(ctx context.Context) error {
		if sums, err := CounterTotals(ctx, reader); err == nil {
			for name, v := range sums {
				slog.Debug("telemetry: counter", "name", name, "value", v)
			}
		}
		return mp.Shutdown(ctx)
	}
}

// CounterTotals collects reader and sums every int64 counter by name.
func CounterTotals(ctx context.Context, reader sdkmetric.Reader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out, nil
}

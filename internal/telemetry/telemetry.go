// Package telemetry is a thin wrapper around the OpenTelemetry global
// providers, mirroring the pattern the teacher uses for its SQL-level spans
// (a package-level tracer taken from the global provider, a no-op until
// Init registers a real one) and its Anthropic-call metrics (lazily
// initialized counters/histograms behind a sync.Once).
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a named tracer from the global provider. Until Init runs
// this resolves to the otel no-op tracer, same as the teacher's doltTracer.
func Tracer(name string) trace.Tracer { return otel.Tracer(name) }

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter { return otel.Meter(name) }

// Shutdown stops the providers installed by Init, flushing any buffered
// spans/metrics. Safe to call even if Init was never called.
type Shutdown func(context.Context) error

// Init wires stdout exporters (the teacher's repo carries the same
// stdouttrace/stdoutmetric deps for local/dev visibility; a production
// deployment would swap these for an OTLP exporter without touching call
// sites, since every component reaches the providers through Tracer/Meter).
// Passing w = io.Discard mutes output while keeping instrumentation live,
// useful in tests that only want to assert no panics occur.
func Init(ctx context.Context, w io.Writer) (Shutdown, error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}

// Package telemetry wires OpenTelemetry providers for the paperfig CLI.
//
// Telemetry is off by default and costs nothing when off.
//
//	PAPERFIG_OTEL_ENABLED=true   enable spans and metrics
//	PAPERFIG_OTEL_METRICS=true   also export metrics (spans only otherwise)
//	OTEL_SERVICE_NAME=...        override the service name
//
// Enabled providers write pretty-printed JSON to the configured writer
// (stderr in the CLI) so command output on stdout stays parseable.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const metricInterval = 15 * time.Second

// Enabled reports whether PAPERFIG_OTEL_ENABLED is "true".
func Enabled() bool {
	return os.Getenv("PAPERFIG_OTEL_ENABLED") == "true"
}

// Providers holds the tracer and meter providers handed to the engine.
type Providers struct {
	Tracer   trace.TracerProvider
	Meter    metric.MeterProvider
	shutdown []func(context.Context) error
}

// Shutdown flushes and stops every enabled provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	p.shutdown = nil
	return errors.Join(errs...)
}

// Noop returns providers that record nothing.
func Noop() *Providers {
	return &Providers{
		Tracer: tracenoop.NewTracerProvider(),
		Meter:  metricnoop.NewMeterProvider(),
	}
}

// Init builds providers and installs them globally. When telemetry is
// disabled the no-op providers are installed.
func Init(ctx context.Context, w io.Writer, serviceName, version string) (*Providers, error) {
	if !Enabled() {
		p := Noop()
		otel.SetTracerProvider(p.Tracer)
		otel.SetMeterProvider(p.Meter)
		return p, nil
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		serviceName = name
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	p, err := build(w, res, os.Getenv("PAPERFIG_OTEL_METRICS") == "true")
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(p.Tracer)
	otel.SetMeterProvider(p.Meter)
	return p, nil
}

func build(w io.Writer, res *resource.Resource, withMetrics bool) (*Providers, error) {
	spanExp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(spanExp),
	)
	p := &Providers{Tracer: tp, shutdown: []func(context.Context) error{tp.Shutdown}}

	mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if withMetrics {
		metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
		}
		mopts = append(mopts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(metricInterval)),
		))
	}
	mp := sdkmetric.NewMeterProvider(mopts...)
	p.Meter = mp
	p.shutdown = append(p.shutdown, mp.Shutdown)
	return p, nil
}

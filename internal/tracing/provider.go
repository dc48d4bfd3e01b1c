// Package tracing wires the OpenTelemetry tracer the audit sink opens
// a "policy.decision" span on for every admission. The exporter itself
// is the one piece of plumbing spec.md keeps external: this package
// ships only a stdout exporter. It has no OTLP exporter and no way to
// plug one in; a configured OTLP endpoint is not used.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the process's TracerProvider and its exporter.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds a Provider for serviceName that exports spans to
// stdout. It takes no endpoint: a non-empty OTEL_ENDPOINT is logged by
// the caller as unused rather than silently ignored.
func NewProvider(serviceName string) (*Provider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Tracer returns the tracer the audit sink should open spans with.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer("aegisgate")
}

// Shutdown flushes and closes the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

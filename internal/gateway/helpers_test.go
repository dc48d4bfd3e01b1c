package gateway

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// noopTracer returns a real tracer backed by a TracerProvider with no
// exporter configured, the same pattern the audit package's own tests
// use — spans are created and timed but never exported anywhere.
func noopTracer() trace.Tracer {
	return sdktrace.NewTracerProvider().Tracer("gateway-test")
}

package audit

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sink is the audit emission contract: record a decision as a log line,
// a tracing span, and a History entry. Injected into the gateway
// pipeline rather than reached for as a singleton, so tests can swap it
// out.
type Sink interface {
	Record(ctx context.Context, r Record) (traceID string)
	Recent(limit int) []HistoryEntry
}

// LogSink is the default Sink: one JSON line per decision via slog, a
// "policy.decision" span (with a nested "tool.call" child span when a
// tool was actually invoked) via the injected tracer, and a bounded
// History ring for the admin feed.
type LogSink struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	history *History
}

// NewLogSink creates a LogSink. tracer is typically obtained from an
// otel.TracerProvider the caller owns; the provider's exporter
// configuration (stdout, OTLP, or none) is an external concern this
// package does not manage.
func NewLogSink(logger *slog.Logger, tracer trace.Tracer, historyCapacity int) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{
		logger:  logger.With("component", "audit.Sink"),
		tracer:  tracer,
		history: NewHistory(historyCapacity),
	}
}

// Record opens the policy.decision span, derives its 32-hex trace id,
// emits the structured log line with the literal dotted field names
// external consumers depend on, appends to History, and returns the
// derived trace id for transport-layer correlation.
func (s *LogSink) Record(ctx context.Context, r Record) string {
	spanCtx, span := s.tracer.Start(ctx, "policy.decision")
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("agent.id", r.AgentID),
		attribute.String("tool.name", r.Tool),
		attribute.String("tool.action", r.Action),
		attribute.Bool("decision.allow", r.Allow),
		attribute.Int("policy.version", r.PolicyVersion),
		attribute.String("params.hash", ParamsHash(r.Params)),
		attribute.Float64("latency.ms", roundMs(r.LatencyMs)),
	}
	if r.ParentAgent != "" {
		attrs = append(attrs, attribute.String("parent.agent", r.ParentAgent))
	}
	span.SetAttributes(attrs...)

	traceID := fmt.Sprintf("%032x", span.SpanContext().TraceID())

	if r.Allow && r.ToolLatencyMs > 0 {
		_, toolSpan := s.tracer.Start(spanCtx, "tool.call")
		toolSpan.SetAttributes(
			attribute.String("tool.name", r.Tool),
			attribute.String("tool.action", r.Action),
			attribute.Float64("latency.ms", roundMs(r.ToolLatencyMs)),
		)
		toolSpan.End()
	}

	logArgs := []any{
		"trace.id", traceID,
		"agent.id", r.AgentID,
		"tool.name", r.Tool,
		"tool.action", r.Action,
		"decision.allow", r.Allow,
		"reason", r.Reason,
		"policy.version", r.PolicyVersion,
		"params.hash", ParamsHash(r.Params),
		"latency.ms", roundMs(r.LatencyMs),
	}
	if r.ParentAgent != "" {
		logArgs = append(logArgs, "parent.agent", r.ParentAgent)
	}
	if r.ToolLatencyMs > 0 {
		logArgs = append(logArgs, "tool.latency.ms", roundMs(r.ToolLatencyMs))
	}
	s.logger.Info("policy decision", logArgs...)

	s.history.Append(r.toHistoryEntry())
	return traceID
}

// Recent returns up to limit of the most recently recorded decisions.
func (s *LogSink) Recent(limit int) []HistoryEntry {
	return s.history.Recent(limit)
}

func roundMs(ms float64) float64 {
	return float64(int(ms*100+0.5)) / 100
}

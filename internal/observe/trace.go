package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the phonoscore tracer.
const tracerName = "github.com/MrWong99/phonoscore"

// CorrelationHeader is the response header that carries the request's trace
// ID back to clients.
const CorrelationHeader = "X-Correlation-ID"

// Tracer returns the phonoscore [trace.Tracer] from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller ends it with span.End or
// [EndSpan].
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// EndSpan ends span, first marking it failed when err is non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ScoreAttributes describes a finished comparison on its span.
func ScoreAttributes(source string, silent bool, accuracy float64, method string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("phonoscore.source", source),
		attribute.Bool("phonoscore.silent", silent),
		attribute.Float64("phonoscore.accuracy", accuracy),
		attribute.String("phonoscore.analysis.method", method),
	}
}

// CorrelationID returns the trace ID of the span in ctx, or "" when there is
// no valid span.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a valid span.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}

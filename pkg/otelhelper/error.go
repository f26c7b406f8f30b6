package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed and records the error, attaching any
// extra attributes to the error event. Pipeline stages call it before
// ending their span so a refused transition is visible in the trace.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	span.AddEvent("transition_stage_failed", trace.WithAttributes(attrs...))
}

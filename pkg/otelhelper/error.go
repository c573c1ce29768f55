package otelhelper

import (
	"errors"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// KindedError is an error that names its own failure kind.
type KindedError interface {
	error
	ErrorKind() string
}

// SetError marks the span failed and attaches attrs to an error event. When err
// wraps a KindedError, its kind is set under ErrorKindKey on both.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	var kinded KindedError
	if errors.As(err, &kinded) {
		kind := attribute.String(ErrorKindKey, kinded.ErrorKind())
		span.SetAttributes(kind)
		attrs = append(slices.Clip(attrs), kind)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}

package observability

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with grid-specific span helpers.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// NewTracer creates a new Tracer using the given TracerProvider.
func NewTracer(tp trace.TracerProvider, serviceName string, opts ...trace.TracerOption) *Tracer {
	return &Tracer{
		tracer:      tp.Tracer(TracerName, opts...),
		serviceName: serviceName,
	}
}

// StartSpan starts a new span with the given name and attributes.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartOperation starts a span named "datagrid.<op>" for an operation on a
// resource. id may be empty for collection operations.
func (t *Tracer) StartOperation(ctx context.Context, resource, op, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{ResourceAttr(resource), OperationAttr(op)}
	if id != "" {
		attrs = append(attrs, RecordIDAttr(id))
	}
	return t.tracer.Start(ctx, "datagrid."+op, trace.WithAttributes(attrs...))
}

// AddQueryState records the query parameters a view was derived with.
func (t *Tracer) AddQueryState(span trace.Span, search, orderBy string, page, pageSize int) {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrPage, page),
		attribute.Int(AttrPageSize, pageSize),
	}
	if search != "" {
		attrs = append(attrs, attribute.String(AttrSearch, search))
	}
	if orderBy != "" {
		attrs = append(attrs, attribute.String(AttrOrderBy, orderBy))
	}
	span.SetAttributes(attrs...)
}

// SetHTTPStatus sets the HTTP status code on the current span.
func (t *Tracer) SetHTTPStatus(ctx context.Context, statusCode int) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
	if statusCode >= 500 {
		span.SetStatus(codes.Error, http.StatusText(statusCode))
	}
}

// RecordError records an error on the span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// LoggerWithTrace returns a logger enriched with trace context.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}
	return logger.With(
		slog.String(LogFieldTraceID, span.SpanContext().TraceID().String()),
		slog.String(LogFieldSpanID, span.SpanContext().SpanID().String()),
	)
}

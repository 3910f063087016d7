package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricRequestDuration    = "datagrid.request.duration"
	MetricRequestCount       = "datagrid.request.count"
	MetricResultCount        = "datagrid.result.count"
	MetricMutationCount      = "datagrid.mutation.count"
	MetricValidationFailures = "datagrid.validation.failures"
	MetricRefreshCount       = "datagrid.refresh.count"
	MetricDBQueryDuration    = "datagrid.db.query.duration"
	MetricErrorCount         = "datagrid.error.count"
)

// Metrics holds the grid's metric instruments.
type Metrics struct {
	requestDuration    metric.Float64Histogram
	requestCount       metric.Int64Counter
	resultCount        metric.Int64Histogram
	mutationCount      metric.Int64Counter
	validationFailures metric.Int64Counter
	refreshCount       metric.Int64Counter
	dbQueryDuration    metric.Float64Histogram
	errorCount         metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	return newMetrics(mp.Meter(MeterName))
}

// Instrument creation only fails for invalid names or options; on failure
// the bare instrument is created instead.
func newMetrics(meter metric.Meter) *Metrics {
	m := &Metrics{}

	float64Histogram := func(name, desc, unit string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			h, _ = meter.Float64Histogram(name) //nolint:errcheck
		}
		return h
	}
	int64Histogram := func(name, desc, unit string) metric.Int64Histogram {
		h, err := meter.Int64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			h, _ = meter.Int64Histogram(name) //nolint:errcheck
		}
		return h
	}
	int64Counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			c, _ = meter.Int64Counter(name) //nolint:errcheck
		}
		return c
	}

	m.requestDuration = float64Histogram(MetricRequestDuration, "Duration of grid requests in milliseconds", "ms")
	m.requestCount = int64Counter(MetricRequestCount, "Total number of grid requests", "{request}")
	m.resultCount = int64Histogram(MetricResultCount, "Number of rows returned per page", "{row}")
	m.mutationCount = int64Counter(MetricMutationCount, "Number of records created, updated or deleted", "{record}")
	m.validationFailures = int64Counter(MetricValidationFailures, "Number of rejected candidates", "{candidate}")
	m.refreshCount = int64Counter(MetricRefreshCount, "Number of refreshes by outcome", "{refresh}")
	m.dbQueryDuration = float64Histogram(MetricDBQueryDuration, "Duration of session store queries in milliseconds", "ms")
	m.errorCount = int64Counter(MetricErrorCount, "Total number of failed grid requests", "{error}")
	return m
}

// RecordRequest records metrics for a completed request.
func (m *Metrics) RecordRequest(ctx context.Context, resource, operation string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		ResourceAttr(resource),
		OperationAttr(operation),
		attribute.Int("http.status_code", statusCode),
	)
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.requestCount.Add(ctx, 1, attrs)
}

// RecordResultCount records the number of rows on a returned page.
func (m *Metrics) RecordResultCount(ctx context.Context, resource string, count int) {
	m.resultCount.Record(ctx, int64(count), metric.WithAttributes(ResourceAttr(resource)))
}

// RecordMutation records count records changed by operation.
func (m *Metrics) RecordMutation(ctx context.Context, resource, operation string, count int) {
	if count <= 0 {
		return
	}
	m.mutationCount.Add(ctx, int64(count), metric.WithAttributes(ResourceAttr(resource), OperationAttr(operation)))
}

// RecordValidationFailure records a rejected candidate.
func (m *Metrics) RecordValidationFailure(ctx context.Context, resource string) {
	m.validationFailures.Add(ctx, 1, metric.WithAttributes(ResourceAttr(resource)))
}

// RecordRefresh records a refresh outcome such as "ok", "superseded" or "stale".
func (m *Metrics) RecordRefresh(ctx context.Context, outcome string) {
	m.refreshCount.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrRefreshOutcome, outcome)))
}

// RecordDBQuery records metrics for a session store query.
func (m *Metrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))
	m.dbQueryDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordError records a failed request.
func (m *Metrics) RecordError(ctx context.Context, resource, operation, errorCode string) {
	attrs := metric.WithAttributes(
		ResourceAttr(resource),
		OperationAttr(operation),
		ErrorCodeAttr(errorCode),
	)
	m.errorCount.Add(ctx, 1, attrs)
}

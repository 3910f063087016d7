// Package observability provides OpenTelemetry-based instrumentation for the
// grid service: request and operation spans, metrics, Server-Timing headers
// and GORM callbacks for the session store.
//
// All observability features are opt-in. When not configured, no-op
// implementations are used.
package observability

import "go.opentelemetry.io/otel/attribute"

// Instrumentation identity constants
const (
	// TracerName is the instrumentation name for tracing.
	TracerName = "github.com/nlstn/go-datagrid"
	// MeterName is the instrumentation name for metrics.
	MeterName = "github.com/nlstn/go-datagrid"
)

// Semantic attribute keys.
const (
	AttrResource  = "datagrid.resource"
	AttrRecordID  = "datagrid.record_id"
	AttrOperation = "datagrid.operation"

	AttrSearch   = "datagrid.query.search"
	AttrOrderBy  = "datagrid.query.orderby"
	AttrPage     = "datagrid.query.page"
	AttrPageSize = "datagrid.query.page_size"

	AttrResultCount    = "datagrid.result.count"
	AttrAffectedCount  = "datagrid.affected.count"
	AttrRefreshOutcome = "datagrid.refresh.outcome"

	AttrErrorCode = "datagrid.error.code"
)

// Resources served by the grid service.
const (
	ResourceProducts      = "products"
	ResourceEvents        = "events"
	ResourceDashboard     = "dashboard"
	ResourceSession       = "session"
	ResourceNotifications = "notifications"
)

// Operation types for the datagrid.operation attribute.
const (
	OpQuery      = "query"
	OpRead       = "read"
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpDeleteMany = "delete_many"
	OpSort       = "sort"
	OpSelect     = "select"
	OpRefresh    = "refresh"
	OpLogin      = "login"
	OpLogout     = "logout"
)

// Log field keys for structured logging with trace context.
const (
	LogFieldTraceID   = "trace_id"
	LogFieldSpanID    = "span_id"
	LogFieldSessionID = "session_id"
	LogFieldDuration  = "duration_ms"
	LogFieldError     = "error"
)

// ResourceAttr creates an attribute for the resource name.
func ResourceAttr(name string) attribute.KeyValue {
	return attribute.String(AttrResource, name)
}

// RecordIDAttr creates an attribute for a record id.
func RecordIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrRecordID, id)
}

// OperationAttr creates an attribute for the operation type.
func OperationAttr(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// ResultCountAttr creates an attribute for the number of rows returned.
func ResultCountAttr(count int) attribute.KeyValue {
	return attribute.Int(AttrResultCount, count)
}

// AffectedCountAttr creates an attribute for the number of records changed.
func AffectedCountAttr(count int) attribute.KeyValue {
	return attribute.Int(AttrAffectedCount, count)
}

// ErrorCodeAttr creates an attribute for the error code.
func ErrorCodeAttr(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

// RefreshOutcomeAttr creates an attribute for how a refresh ended.
func RefreshOutcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(AttrRefreshOutcome, outcome)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nlstn/go-datagrid/internal/observability"
	"github.com/nlstn/go-datagrid/internal/response"
	"github.com/nlstn/go-datagrid/internal/table"
	"go.opentelemetry.io/otel/trace"
)

// TableSource resolves the grid of the session making a request.
type TableSource interface {
	Table(ctx context.Context) (*table.Table, error)
}

// TableSourceFunc adapts a function to TableSource.
type TableSourceFunc func(ctx context.Context) (*table.Table, error)

// Table implements TableSource.
func (f TableSourceFunc) Table(ctx context.Context) (*table.Table, error) {
	return f(ctx)
}

// base carries the logger and observability settings shared by every handler.
type base struct {
	logger        *slog.Logger
	observability *observability.Config
}

func newBase() base {
	return base{logger: slog.Default()}
}

// SetLogger sets the logger. Nil restores slog.Default().
func (b *base) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	b.logger = logger
}

// SetObservability configures tracing and metrics.
func (b *base) SetObservability(cfg *observability.Config) {
	b.observability = cfg
}

func (b *base) log(ctx context.Context) *slog.Logger {
	return observability.LoggerWithTrace(ctx, b.logger)
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// operationFunc serves one operation. A returned error is written as an
// error envelope.
type operationFunc func(w http.ResponseWriter, r *http.Request, span trace.Span) error

// serve runs fn inside an operation span and records request metrics.
func (b *base) serve(w http.ResponseWriter, r *http.Request, resource, op, id string, fn operationFunc) {
	tracer := b.observability.Tracer()
	metrics := b.observability.Metrics()
	start := time.Now()

	ctx, span := tracer.StartOperation(r.Context(), resource, op, id)
	defer span.End()
	timing := observability.StartServerTiming(ctx, op)
	r = r.WithContext(ctx)

	sw := &statusWriter{ResponseWriter: w}
	err := fn(sw, r, span)
	timing.Stop()
	if err != nil {
		status, code := classify(err)
		tracer.RecordError(span, err)
		span.SetAttributes(observability.ErrorCodeAttr(code))
		metrics.RecordError(ctx, resource, op, code)
		if status == http.StatusBadRequest && code == CodeValidation {
			metrics.RecordValidationFailure(ctx, resource)
		}
		WriteError(sw, r, b.log(ctx), err)
	}

	status := sw.status
	if status == 0 {
		status = http.StatusOK
	}
	tracer.SetHTTPStatus(ctx, status)
	metrics.RecordRequest(ctx, resource, op, status, time.Since(start))
	b.log(ctx).DebugContext(ctx, "request served",
		"resource", resource,
		"operation", op,
		"status", status,
		observability.LogFieldDuration, time.Since(start).Milliseconds())
}

// decodeJSON decodes the request body into v. An empty body is rejected.
func decodeJSON(r *http.Request, v any) error {
	present, err := decodeOptionalJSON(r, v)
	if err != nil {
		return err
	}
	if !present {
		return badRequest(ErrMsgInvalidRequestBody, "", errors.New("request body is empty"))
	}
	return nil
}

// decodeOptionalJSON decodes the request body into v and reports whether
// there was one. An empty body leaves v untouched.
func decodeOptionalJSON(r *http.Request, v any) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, badRequest(ErrMsgInvalidRequestBody, "", fmt.Errorf(ErrDetailFailedToParseJSON, err))
	}
	return true, nil
}

// writeJSON writes v and logs a failed write.
func (b *base) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := response.WriteJSON(w, status, v); err != nil {
		b.log(r.Context()).Error("Error writing response", "error", err)
	}
}

// writeEntity writes v with an ETag and logs a failed write.
func (b *base) writeEntity(w http.ResponseWriter, r *http.Request, status int, v any, etag string) {
	if err := response.WriteEntity(w, status, v, etag); err != nil {
		b.log(r.Context()).Error("Error writing entity response", "error", err)
	}
}

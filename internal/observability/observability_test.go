package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithServiceName("grid-test"),
		WithServiceVersion("1.2.3"),
		WithDetailedDBTracing(),
		WithServerTiming(),
	)

	if cfg.serviceName != "grid-test" || cfg.serviceVersion != "1.2.3" {
		t.Errorf("unexpected identity %q %q", cfg.serviceName, cfg.serviceVersion)
	}
	if !cfg.ServerTimingEnabled() {
		t.Error("expected server timing")
	}
	if cfg.tracing() || cfg.dbTracing() {
		t.Error("db spans need a tracer provider")
	}
	if cfg.Tracer() == nil || cfg.Metrics() == nil {
		t.Error("expected noop tracer and metrics")
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig(WithServiceName(""))
	if cfg.serviceName != "datagridd" {
		t.Errorf("serviceName = %q", cfg.serviceName)
	}
	if cfg.ServerTimingEnabled() {
		t.Error("server timing should be off by default")
	}
}

func TestConfigWithProviders(t *testing.T) {
	cfg := NewConfig(
		WithTracerProvider(tracenoop.NewTracerProvider()),
		WithMeterProvider(noop.NewMeterProvider()),
	)
	if !cfg.tracing() {
		t.Error("expected tracing with a provider")
	}
	if cfg.Tracer().serviceName != "datagridd" {
		t.Errorf("tracer service name = %q", cfg.Tracer().serviceName)
	}
}

func TestNilConfig(t *testing.T) {
	var cfg *Config
	if cfg.Tracer() == nil || cfg.Metrics() == nil {
		t.Fatal("nil config should yield noop instruments")
	}
	if cfg.tracing() || cfg.dbTracing() || cfg.ServerTimingEnabled() {
		t.Error("nil config should be disabled")
	}
}

func TestTracerHelpers(t *testing.T) {
	tracer := NewTracer(tracenoop.NewTracerProvider(), "grid-test")
	ctx, span := tracer.StartOperation(context.Background(), ResourceProducts, OpUpdate, "PRD-1000")
	defer span.End()

	tracer.AddQueryState(span, "lamp", "price desc", 2, 10)
	tracer.SetHTTPStatus(ctx, http.StatusInternalServerError)
	tracer.RecordError(span, errors.New("boom"))
	tracer.RecordError(span, nil)

	_, collection := tracer.StartOperation(ctx, ResourceProducts, OpQuery, "")
	collection.End()
}

func TestMetricsRecorders(t *testing.T) {
	ctx := context.Background()
	for _, m := range []*Metrics{NewNoopMetrics(), NewMetrics(noop.NewMeterProvider())} {
		m.RecordRequest(ctx, ResourceProducts, OpQuery, http.StatusOK, time.Millisecond)
		m.RecordResultCount(ctx, ResourceProducts, 10)
		m.RecordMutation(ctx, ResourceProducts, OpDeleteMany, 3)
		m.RecordMutation(ctx, ResourceProducts, OpDeleteMany, 0)
		m.RecordValidationFailure(ctx, ResourceProducts)
		m.RecordRefresh(ctx, "superseded")
		m.RecordDBQuery(ctx, "SELECT", time.Millisecond)
		m.RecordError(ctx, ResourceProducts, OpCreate, "validation_failed")
	}
}

func TestAttributes(t *testing.T) {
	if ResourceAttr("products").Value.AsString() != "products" {
		t.Error("ResourceAttr")
	}
	if RecordIDAttr("PRD-1").Key != AttrRecordID {
		t.Error("RecordIDAttr")
	}
	if ResultCountAttr(4).Value.AsInt64() != 4 || AffectedCountAttr(2).Value.AsInt64() != 2 {
		t.Error("count attributes")
	}
	if ErrorCodeAttr("x").Key != AttrErrorCode || OperationAttr(OpRefresh).Value.AsString() != "refresh" {
		t.Error("error/operation attributes")
	}
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	if got := LoggerWithTrace(context.Background(), logger); got != logger {
		t.Error("expected logger unchanged without span context")
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	LoggerWithTrace(ctx, logger).Info("hello")

	out := buf.String()
	if !strings.Contains(out, LogFieldTraceID+"="+sc.TraceID().String()) {
		t.Errorf("missing trace id in %q", out)
	}
	if !strings.Contains(out, LogFieldSpanID+"="+sc.SpanID().String()) {
		t.Errorf("missing span id in %q", out)
	}
}

func TestHTTPMiddlewarePassthrough(t *testing.T) {
	called := false
	h := HTTPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("expected passthrough")
	}
}

func TestHTTPMiddlewareWithTracing(t *testing.T) {
	cfg := NewConfig(WithTracerProvider(tracenoop.NewTracerProvider()))
	h := HTTPMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d", w.Code)
	}
}

func TestServerTimingMiddleware(t *testing.T) {
	cfg := NewConfig(WithServerTiming())
	h := ServerTimingMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := StartServerTimingWithDesc(r.Context(), "derive", "query view")
		m.Stop()
		AddDBTime(r.Context(), 2*time.Millisecond)
		if acc := DBTimeAccumulatorFromContext(r.Context()); acc == nil || acc.Count() != 1 {
			t.Error("expected request accumulator")
		}
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))

	header := w.Header().Get("Server-Timing")
	if !strings.Contains(header, "derive") || !strings.Contains(header, "db") {
		t.Errorf("Server-Timing = %q", header)
	}
}

func TestServerTimingDisabled(t *testing.T) {
	h := ServerTimingMiddleware(NewConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		StartServerTiming(r.Context(), "noop").Stop()
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Server-Timing") != "" {
		t.Error("expected no Server-Timing header")
	}
}

func TestServerTimingMetricNilStop(t *testing.T) {
	var m *ServerTimingMetric
	m.Stop()
	(&ServerTimingMetric{}).Stop()
}

func TestDBTimeAccumulatorConcurrent(t *testing.T) {
	acc := &DBTimeAccumulator{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				acc.Add(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if acc.Duration() != time.Second || acc.Count() != 1000 {
		t.Errorf("got %v over %d queries", acc.Duration(), acc.Count())
	}
}

func TestAddDBTimeWithoutAccumulator(t *testing.T) {
	AddDBTime(context.Background(), time.Millisecond)
	if DBTimeAccumulatorFromContext(context.Background()) != nil {
		t.Error("expected nil accumulator")
	}
}

type kvRow struct {
	Name  string `gorm:"primaryKey"`
	Value string
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestServerTimingCallbacks(t *testing.T) {
	db := openDB(t)
	if err := RegisterServerTimingCallbacks(db); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := WithDBTimeAccumulator(context.Background())
	if err := db.WithContext(ctx).Create(&kvRow{Name: "a", Value: "1"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	var rows []kvRow
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}

	acc := DBTimeAccumulatorFromContext(ctx)
	if acc.Count() < 2 || acc.Duration() <= 0 {
		t.Errorf("expected timed queries, got %d totalling %v", acc.Count(), acc.Duration())
	}
}

func TestGORMTracingCallbacks(t *testing.T) {
	db := openDB(t)

	// Disabled without detailed tracing.
	if err := RegisterGORMCallbacks(db, NewConfig()); err != nil {
		t.Fatal(err)
	}

	cfg := NewConfig(WithTracerProvider(tracenoop.NewTracerProvider()), WithDetailedDBTracing())
	if !cfg.dbTracing() {
		t.Fatal("expected db tracing")
	}
	if err := RegisterGORMCallbacks(db, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := db.Create(&kvRow{Name: "b", Value: "2"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	var row kvRow
	if err := db.Where("name = ?", "missing").Take(&row).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

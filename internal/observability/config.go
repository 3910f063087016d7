package observability

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const defaultServiceName = "datagridd"

// Config carries the providers and switches shared by the HTTP middleware,
// the handlers and the session store callbacks. A nil *Config disables all
// of them.
type Config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	serviceVersion string
	dbSpans        bool
	serverTiming   bool

	tracer  *Tracer
	metrics *Metrics
}

// Option configures a Config.
type Option func(*Config)

// WithTracerProvider enables tracing. Without it spans are no-ops.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) { c.tracerProvider = tp }
}

// WithMeterProvider enables the grid metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) { c.meterProvider = mp }
}

// WithServiceName names the tracer. An empty name keeps "datagridd".
func WithServiceName(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.serviceName = name
		}
	}
}

// WithServiceVersion is recorded as the instrumentation version of every span.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.serviceVersion = version }
}

// WithDetailedDBTracing adds a span per session store query.
func WithDetailedDBTracing() Option {
	return func(c *Config) { c.dbSpans = true }
}

// WithServerTiming adds the Server-Timing response header.
func WithServerTiming() Option {
	return func(c *Config) { c.serverTiming = true }
}

// NewConfig applies opts and builds the tracer and metrics.
func NewConfig(opts ...Option) *Config {
	c := &Config{serviceName: defaultServiceName}
	for _, opt := range opts {
		opt(c)
	}

	c.tracer = NewNoopTracer()
	if c.tracerProvider != nil {
		var topts []trace.TracerOption
		if c.serviceVersion != "" {
			topts = append(topts, trace.WithInstrumentationVersion(c.serviceVersion))
		}
		c.tracer = NewTracer(c.tracerProvider, c.serviceName, topts...)
	}
	c.metrics = NewNoopMetrics()
	if c.meterProvider != nil {
		c.metrics = NewMetrics(c.meterProvider)
	}
	return c
}

func (c *Config) Tracer() *Tracer {
	if c == nil || c.tracer == nil {
		return NewNoopTracer()
	}
	return c.tracer
}

func (c *Config) Metrics() *Metrics {
	if c == nil || c.metrics == nil {
		return NewNoopMetrics()
	}
	return c.metrics
}

func (c *Config) tracing() bool {
	return c != nil && c.tracerProvider != nil
}

func (c *Config) dbTracing() bool {
	return c.tracing() && c.dbSpans
}

// ServerTimingEnabled reports whether the Server-Timing header is on.
func (c *Config) ServerTimingEnabled() bool {
	return c != nil && c.serverTiming
}

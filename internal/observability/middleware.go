package observability

import (
	"net/http"

	servertiming "github.com/mitchellh/go-server-timing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPMiddleware returns an HTTP middleware that instruments requests with tracing.
// It uses otelhttp for automatic span propagation and HTTP semantic attributes.
func HTTPMiddleware(cfg *Config) func(http.Handler) http.Handler {
	if !cfg.tracing() {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		opts := []otelhttp.Option{otelhttp.WithTracerProvider(cfg.tracerProvider)}
		if cfg.meterProvider != nil {
			opts = append(opts, otelhttp.WithMeterProvider(cfg.meterProvider))
		}
		return otelhttp.NewHandler(next, "datagrid.http", opts...)
	}
}

// ServerTimingMiddleware adds a Server-Timing response header and a per-request
// session store time accumulator when server timing is enabled.
func ServerTimingMiddleware(cfg *Config) func(http.Handler) http.Handler {
	if !cfg.ServerTimingEnabled() {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithDBTimeAccumulator(r.Context())))
		})
		return servertiming.Middleware(inner, nil)
	}
}

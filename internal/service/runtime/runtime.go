// Package runtime wraps the router with the cross-cutting request pipeline:
// tracing, Server-Timing, panic recovery and the session gate.
package runtime

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/nlstn/go-datagrid/internal/auth"
	"github.com/nlstn/go-datagrid/internal/handlers"
	"github.com/nlstn/go-datagrid/internal/observability"
)

// Runtime coordinates HTTP request handling for a service instance.
type Runtime struct {
	mu            sync.RWMutex
	router        http.Handler
	logger        *slog.Logger
	authenticator *auth.Authenticator
	isPublic      func(*http.Request) bool
	observability *observability.Config
	chain         http.Handler
}

// New creates a new Runtime.
func New(router http.Handler, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{router: router, logger: logger}
	rt.rebuild()
	return rt
}

// SetRouter updates the router used to dispatch requests.
func (rt *Runtime) SetRouter(router http.Handler) {
	rt.mu.Lock()
	rt.router = router
	rt.rebuild()
	rt.mu.Unlock()
}

// SetLogger updates the logger used for error reporting.
func (rt *Runtime) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	rt.mu.Lock()
	rt.logger = logger
	rt.rebuild()
	rt.mu.Unlock()
}

// SetAuthenticator requires a valid session on every request for which
// isPublic returns false. A nil authenticator disables the gate.
func (rt *Runtime) SetAuthenticator(a *auth.Authenticator, isPublic func(*http.Request) bool) {
	rt.mu.Lock()
	rt.authenticator = a
	rt.isPublic = isPublic
	rt.rebuild()
	rt.mu.Unlock()
}

// SetObservability enables tracing and Server-Timing middleware.
func (rt *Runtime) SetObservability(cfg *observability.Config) {
	rt.mu.Lock()
	rt.observability = cfg
	rt.rebuild()
	rt.mu.Unlock()
}

// rebuild must be called with rt.mu held (or before rt is shared).
func (rt *Runtime) rebuild() {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service router not initialized", http.StatusInternalServerError)
	})
	if rt.router != nil {
		h = rt.router
	}
	h = rt.sessionGate(h)
	h = recoverer(h, rt.logger)
	h = observability.ServerTimingMiddleware(rt.observability)(h)
	h = observability.HTTPMiddleware(rt.observability)(h)
	rt.chain = h
}

func (rt *Runtime) sessionGate(next http.Handler) http.Handler {
	if rt.authenticator == nil {
		return next
	}
	logger := rt.logger
	gated := rt.authenticator.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "error", err)
		handlers.WriteError(w, r, logger, err)
	})(next)
	isPublic := rt.isPublic
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic != nil && isPublic(r) {
			next.ServeHTTP(w, r)
			return
		}
		gated.ServeHTTP(w, r)
	})
}

func recoverer(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.ErrorContext(r.Context(), "panic serving request",
					"method", r.Method, "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
				handlers.WriteError(w, r, logger, &handlers.Error{
					StatusCode: http.StatusInternalServerError,
					Code:       handlers.CodeInternal,
					Message:    handlers.ErrMsgInternalError,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP dispatches the request through the middleware chain.
func (rt *Runtime) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mu.RLock()
	chain := rt.chain
	rt.mu.RUnlock()
	chain.ServeHTTP(w, r)
}

// Package router maps request paths onto resource handlers. Paths have the
// shape /<resource>, /<resource>/<id> or /<resource>/$<action>.
package router

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/nlstn/go-datagrid/internal/handlers"
	"github.com/nlstn/go-datagrid/internal/response"
)

// ResourceHandler defines the behavior required from resource handlers by the router.
type ResourceHandler interface {
	HandleCollection(http.ResponseWriter, *http.Request)
	HandleEntity(http.ResponseWriter, *http.Request, string)
}

// ActionHandler is implemented by resources that accept /<resource>/$<action>.
type ActionHandler interface {
	HandleAction(http.ResponseWriter, *http.Request, string)
}

// Router routes incoming HTTP requests to the appropriate handlers.
type Router struct {
	mu        sync.RWMutex
	resources map[string]ResourceHandler
	logger    *slog.Logger
}

// NewRouter creates a new Router instance.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		resources: make(map[string]ResourceHandler),
		logger:    logger,
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Handle registers h under name, replacing any previous handler.
func (r *Router) Handle(name string, h ResourceHandler) {
	r.mu.Lock()
	r.resources[name] = h
	r.mu.Unlock()
}

// Resources returns the registered resource names in sorted order.
func (r *Router) Resources() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

type serviceDocument struct {
	Resources []string `json:"resources"`
}

// ServeHTTP implements http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()

	path := strings.Trim(req.URL.Path, "/")
	if path == "" {
		if req.Method != http.MethodGet {
			handlers.WriteError(w, req, logger, &handlers.Error{
				StatusCode: http.StatusMethodNotAllowed,
				Code:       handlers.CodeMethodNotAllowed,
				Message:    handlers.ErrMsgMethodNotAllowed,
			})
			return
		}
		if err := response.WriteJSON(w, http.StatusOK, serviceDocument{Resources: r.Resources()}); err != nil {
			logger.Error("Error writing service document", "error", err)
		}
		return
	}

	segments := strings.Split(path, "/")
	r.mu.RLock()
	handler, exists := r.resources[segments[0]]
	r.mu.RUnlock()
	if !exists || len(segments) > 2 || (len(segments) == 2 && segments[1] == "") {
		handlers.WriteError(w, req, logger, &handlers.Error{
			StatusCode: http.StatusNotFound,
			Code:       handlers.CodeNotFound,
			Message:    "No resource is registered at '" + req.URL.Path + "'",
		})
		return
	}

	if len(segments) == 1 {
		handler.HandleCollection(w, req)
		return
	}

	key := segments[1]
	if name, isAction := strings.CutPrefix(key, "$"); isAction {
		actions, ok := handler.(ActionHandler)
		if !ok {
			handlers.WriteError(w, req, logger, &handlers.Error{
				StatusCode: http.StatusNotFound,
				Code:       handlers.CodeNotFound,
				Message:    "Resource '" + segments[0] + "' has no actions",
			})
			return
		}
		actions.HandleAction(w, req, name)
		return
	}
	handler.HandleEntity(w, req, key)
}

package datagrid

import (
	"net/http"
	"time"
)

// ServeHTTP implements http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.runtime.ServeHTTP(w, r)
}

// NewServer returns an HTTP server for the service listening on addr.
func (s *Service) NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ListenAndServe starts the service on the specified address.
func (s *Service) ListenAndServe(addr string) error {
	s.logger.Info("starting datagrid service", "addr", addr)
	return s.NewServer(addr).ListenAndServe()
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rpihome-core/internal/dispatch"
)

// buildRouter wires the middleware chain. GET on the metrics path is
// served directly unless a Server-Method header names a method; every
// other request goes to the method registry.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.cfg.Server.Compression {
		r.Use(compression)
	}

	if s.metrics != nil {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, s.metricsHandler())
	}

	r.Handle("/*", s.registry)

	return r
}

// metricsHandler defers to the registry when the request names a method
// through the Server-Method header, as every other path does.
func (s *Server) metricsHandler() http.Handler {
	exposition := s.metrics.handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.Header.Values(dispatch.HeaderServerMethod)) > 0 {
			s.registry.ServeHTTP(w, r)
			return
		}
		exposition.ServeHTTP(w, r)
	})
}

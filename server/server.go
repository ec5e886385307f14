// Package server exposes the external interfaces of spec.md §6: the
// ingest RPC surface, the websocket-like progress channel, and the
// facts edit/delete API, all built on net/http (Go 1.22+ method-pattern
// mux) in the idiom of the teacher's cmd/server package.
package server

import (
	"net/http"

	"github.com/casegraph/discovery"
)

// Server wires Services to HTTP handlers.
type Server struct {
	svc    *discovery.Services
	source FileSource
}

// New builds a Server. source defaults to InlineFileSource{} when nil.
func New(svc *discovery.Services, source FileSource) *Server {
	if source == nil {
		source = InlineFileSource{}
	}
	return &Server{svc: svc, source: source}
}

// Handler returns the fully assembled http.Handler: routes wrapped in the
// recovery -> cors -> auth -> logging middleware chain (matching the
// teacher's cmd/server/main.go ordering).
func (s *Server) Handler(apiKey, corsOrigins string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /discovery/process", s.handleProcess)
	mux.HandleFunc("GET /discovery/status/{processingId}", s.handleStatus)
	mux.HandleFunc("POST /discovery/cancel/{processingId}", s.handleCancel)
	mux.HandleFunc("POST /discovery/facts/{factId}/edit", s.handleEditFact)
	mux.HandleFunc("POST /discovery/facts/{factId}/delete", s.handleDeleteFact)
	mux.HandleFunc("GET /discovery/progress/{processingId}", s.handleProgress)
	mux.HandleFunc("GET /health", s.handleHealth)

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userIDFrom extracts the caller identity the access oracle checks
// against. The teacher's auth middleware only validates a static API key
// (single-tenant deployments); per-user identity rides in a header so
// multi-user deployments can wire a real oracle without changing the
// transport.
func userIDFrom(r *http.Request) string {
	if u := r.Header.Get("X-User-Id"); u != "" {
		return u
	}
	return "anonymous"
}

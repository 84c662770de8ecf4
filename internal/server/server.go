// Package server exposes a project.Service over HTTP (JSON API, event
// stream, MCP mount) and gRPC (health and reflection).
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/tendergraph/internal/graph"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/store"
)

// Server serves the HTTP API.
type Server struct {
	svc    *project.Service
	hub    *EventHub
	mcp    http.Handler
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithEventHub streams events from hub at /v1/events/stream. The hub's
// Publisher should be the one the service publishes through.
func WithEventHub(hub *EventHub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithMCP mounts an MCP handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a server for svc.
func New(svc *project.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.hub == nil {
		s.hub = NewEventHub()
	}
	return s
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var inErr project.InputError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, graph.ErrNotFound), errors.Is(err, project.ErrNoMatch):
		return http.StatusNotFound
	case errors.As(err, &inErr), errors.Is(err, project.ErrAmbiguous):
		return http.StatusBadRequest
	case errors.Is(err, project.ErrNoExtractor):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

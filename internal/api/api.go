// Package api provides the HTTP layer over the conversation controller.
//
// It exposes JSON endpoints for opening the intake widget, submitting step
// values, and reading created leads. The engine's typed errors are mapped to
// status codes here; validation failures are not errors at this boundary and
// come back as accepted=false results.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/carebridge/leadflow/internal/flow"
	"github.com/carebridge/leadflow/internal/store"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Server wires the controller and store into HTTP handlers.
type Server struct {
	controller *flow.Controller
	store      store.Store
	httpServer *http.Server
}

// NewServer creates an API server around the controller.
func NewServer(controller *flow.Controller, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{controller: controller, store: st}

	mux := http.NewServeMux()
	mux.HandleFunc("/intake/start", s.startHandler)
	mux.HandleFunc("/intake/submit", s.submitHandler)
	mux.HandleFunc("/intake/session", s.sessionHandler)
	mux.HandleFunc("/leads/", s.leadHandler)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	slog.Info("API server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bradcypert/popshop/internal/store"
	"github.com/bradcypert/popshop/pkg/logging"
	"github.com/bradcypert/popshop/pkg/ratelimit"
)

// Server owns the listener and the request pipeline: the rule store,
// the middleware chain, and the HTTP handler they wrap.
type Server struct {
	mu sync.Mutex

	host string
	port int
	log  *slog.Logger

	store   *store.RuleStore
	handler *Handler
	chain   *MiddlewareChain

	httpServer *http.Server
	running    bool
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHost sets the listen host. Default is 127.0.0.1.
func WithHost(host string) ServerOption {
	return func(s *Server) {
		if host != "" {
			s.host = host
		}
	}
}

// WithPort sets the listen port. Default is 8080.
func WithPort(port int) ServerOption {
	return func(s *Server) {
		if port > 0 {
			s.port = port
		}
	}
}

// WithMiddleware replaces the default MiddlewareChain.
func WithMiddleware(chain *MiddlewareChain) ServerOption {
	return func(s *Server) { s.chain = chain }
}

// NewServer creates a Server wrapping the given RuleStore. Optional
// ServerOptions customize host, port, logger, and the middleware
// chain; unset options fall back to spec-mandated defaults.
func NewServer(ruleStore *store.RuleStore, opts ...ServerOption) *Server {
	s := &Server{
		host:  "127.0.0.1",
		port:  8080,
		log:   logging.Nop(),
		store: ruleStore,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chain == nil {
		s.chain = NewMiddlewareChain(
			WithRateLimit(ratelimit.New(100, ratelimit.DefaultWindow())),
			WithChainLogger(s.log),
		)
	}
	s.handler = NewHandler(s.store, s.log)
	return s
}

// Store returns the server's RuleStore, for wiring a Config Watcher.
func (s *Server) Store() *store.RuleStore {
	return s.store
}

// Start binds the listener and begins serving requests in the
// background. It returns once the listener is ready, not once the
// server stops; call Stop (or wait on a signal) to shut down.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.chain.Wrap(s.handler),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	s.running = true
	s.log.Info("server started", "addr", addr)
	return nil
}

// Stop gracefully shuts down the server, giving in-flight requests a
// 5-second grace period to complete before forced termination
// (spec.md §5).
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.running = false
	s.chain.Close()
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

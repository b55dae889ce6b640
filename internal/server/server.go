package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler registers a group of related routes on a [Router].
type Handler interface {
	Register(r Router)
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Mount(handler Handler)                            // Mount registers every route of a Handler
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

const lockFileName = ".so-you-made-a-mix.lock"

// Server runs an [http.Server] with fixed timeouts and graceful shutdown.
//
// When a lock directory is set, only one server may run against it at a time.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	lock            *flock.Flock
	logger          *log.Logger
	onShutdown      []func()
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithLockDir takes an exclusive file lock in dir for the lifetime of the server.
func WithLockDir(dir string) ServerOption {
	return func(s *Server) { s.lock = flock.New(filepath.Join(dir, lockFileName)) }
}

// WithShutdownTimeout bounds how long in-flight requests get on shutdown.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// OnShutdown registers fn to run after the listener has stopped.
func OnShutdown(fn func()) ServerOption {
	return func(s *Server) { s.onShutdown = append(s.onShutdown, fn) }
}

// NewServer creates a server for handler listening on addr.
func NewServer(addr string, handler http.Handler, logger *log.Logger, opts ...ServerOption) *Server {
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Archive downloads can be large.
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		shutdownTimeout: 10 * time.Second,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.lock != nil {
		if err := os.MkdirAll(filepath.Dir(s.lock.Path()), 0o755); err != nil {
			ln.Close()
			return fmt.Errorf("failed to create lock dir: %w", err)
		}
		ok, err := s.lock.TryLock()
		if err != nil {
			ln.Close()
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			ln.Close()
			return fmt.Errorf("another server is already running (lock %s)", s.lock.Path())
		}
		defer s.lock.Unlock()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown incomplete", "error", err)
	}
	for _, fn := range s.onShutdown {
		fn()
	}

	s.logger.Info("server stopped")
	return serveErr
}

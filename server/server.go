package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hupe1980/toolrelay/logging"
)

// Server owns the HTTP listener lifecycle.
type Server struct {
	server  *http.Server
	logger  logging.Logger
	running atomic.Bool
}

// New creates a Server listening on addr. Requests are logged through logger.
func New(addr string, handler http.Handler, logger logging.Logger) (*Server, error) {
	if addr == "" {
		return nil, errors.New("new server: empty addr")
	}
	if handler == nil {
		return nil, errors.New("new server: nil handler")
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           requestLogging(logger)(handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start serves until Shutdown is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	s.running.Store(true)
	s.logger.Info("http.server.start", "addr", s.server.Addr)

	err := s.server.ListenAndServe()
	s.running.Store(false)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server, forcing open streams closed once ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown: nil context")
	}

	err := s.server.Shutdown(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("http.server.shutdown_timeout", "action", "forcing connection close")
		if closeErr := s.server.Close(); closeErr != nil {
			return fmt.Errorf("shutdown timeout and forced close failed: %w", errors.Join(err, closeErr))
		}
		return nil
	}
	return err
}

// Running reports whether Start is serving.
func (s *Server) Running() bool { return s.running.Load() }

func requestLogging(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusCapturingWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			logger.Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.statusCode(),
				"bytes", sw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusCapturingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusCapturingWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Flush keeps streaming responses incremental through the middleware.
func (w *statusCapturingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

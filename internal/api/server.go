// File: internal/api/server.go
// Description: HTTP and websocket surface for the command pipeline, served
// with chi.

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/config"
)

const (
	defaultRequestTimeout = 3 * time.Minute
	shutdownTimeout       = 30 * time.Second
)

// CommandProcessor runs one command through the pipeline. The orchestrator
// satisfies it.
type CommandProcessor interface {
	ProcessCommand(ctx context.Context, command, threadID string) schemas.CommandResponse
}

// HistoryReader lists a thread's recorded commands. store.Repository
// satisfies it.
type HistoryReader interface {
	List(ctx context.Context, threadID string, limit int) ([]schemas.HistoryEntry, error)
}

// Server hosts the HTTP API.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	commands CommandProcessor
	history  HistoryReader
	limiter  *clientLimiter
}

// NewServer creates a Server. history may be nil, in which case the history
// endpoint answers 503.
func NewServer(cfg config.ServerConfig, commands CommandProcessor, history HistoryReader, logger *zap.Logger) (*Server, error) {
	if commands == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize api server with nil dependencies")
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("api"),
		commands: commands,
		history:  history,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return s, nil
}

// Router builds the handler tree.
func (s *Server) Router() http.Handler {
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.Get("/healthz", s.handleHealthCheck)

	r.Group(func(r chi.Router) {
		if s.cfg.JWTSecret != "" {
			r.Use(jwtMiddleware([]byte(s.cfg.JWTSecret), s.logger))
		}
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}

		// The websocket stays outside the timeout; connections are long lived.
		r.Get("/ws/v1/command", s.handleCommandSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Post("/command", s.handleCommand)
			r.Route("/api/v1", func(r chi.Router) {
				r.Post("/command", s.handleCommand)
				r.Get("/history/{threadID}", s.handleHistory)
			})
		})
	})
	return r
}

// Serve answers on l until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(l)
	}()
	s.logger.Info("API server listening.", zap.String("address", l.Addr().String()))

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down API server.")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ListenAndServe binds cfg.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, l)
}

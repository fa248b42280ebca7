package clusterserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"

	clusterv1 "github.com/yndnr/tlsmesh-go/api/cluster/v1"
)

// Config configures the cluster server.
type Config struct {
	// Addr is the listen address (host:port).
	Addr string

	// TLSConfig must require and verify client certificates.
	TLSConfig *tls.Config

	// Handler serves the ReloadService.
	Handler clusterv1.ReloadServiceHandler

	// Interceptors wrap every RPC, outermost first.
	Interceptors []connect.Interceptor

	Logger *slog.Logger
}

// Server represents the cluster communication server.
type Server struct {
	cfg        Config
	httpServer *http.Server
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// New creates a new cluster server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	path, handler := clusterv1.NewReloadServiceHandler(cfg.Handler,
		connect.WithInterceptors(cfg.Interceptors...))
	mux.Handle(path, TLSMiddleware(handler))

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
		},
		done: make(chan struct{}),
	}
}

// Start listens with mTLS and serves in the background.
func (s *Server) Start() error {
	if s.cfg.TLSConfig == nil {
		return errors.New("cluster server requires TLS")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		err := s.httpServer.Serve(tls.NewListener(ln, s.cfg.TLSConfig))
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("cluster server stopped", "error", err)
		}
	}()

	s.logger.Info("cluster server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// URL returns the base URL peers use to reach this server.
func (s *Server) URL() string {
	return "https://" + s.Addr()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.listener != nil
	s.mu.Unlock()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown cluster server: %w", err)
	}
	if started {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.logger.Info("cluster server stopped")
	return nil
}

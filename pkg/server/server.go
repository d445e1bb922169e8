package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/server/middleware"
	"mercator-hq/warden/pkg/telemetry/tracing"
	"mercator-hq/warden/pkg/warden/filter"
)

// Options are the collaborators of a Server.
type Options struct {
	// Filter enforces suspensions. Required.
	Filter *filter.Filter

	// Tracer starts a span per proxied request. Optional.
	Tracer *tracing.Tracer

	// Recorder receives request metrics. Optional.
	Recorder middleware.Recorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Mount registers extra endpoints, such as health and metrics, that
	// bypass enforcement. Optional.
	Mount func(mux *http.ServeMux)
}

// Server is the enforcing reverse proxy.
type Server struct {
	cfg     *config.ProxyConfig
	handler http.Handler
	logger  *slog.Logger
	addr    atomic.Pointer[net.Addr]
}

// New builds the proxy for cfg.Upstream.
func New(cfg *config.ProxyConfig, opts Options) (*Server, error) {
	if opts.Filter == nil {
		return nil, errors.New("server: filter is required")
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("server: invalid upstream %q: %w", cfg.Upstream, err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("server: upstream %q must be an absolute URL", cfg.Upstream)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, logger: logger}

	var proxied http.Handler = s.reverseProxy(upstream)
	proxied = opts.Filter.Middleware(proxied)
	if opts.Tracer != nil {
		proxied = opts.Tracer.Middleware(cfg.UserHeader)(proxied)
	}

	mux := http.NewServeMux()
	if opts.Mount != nil {
		opts.Mount(mux)
	}
	mux.Handle("/", proxied)

	s.handler = middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recovery(logger),
		middleware.Logging(logger, opts.Recorder, cfg.UserHeader),
	)
	return s, nil
}

// Handler returns the full handler stack.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound address once the server is listening.
func (s *Server) Addr() net.Addr {
	if a := s.addr.Load(); a != nil {
		return *a
	}
	return nil
}

// Run listens on cfg.ListenAddress and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    s.cfg.IdleTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	addr := ln.Addr()
	s.addr.Store(&addr)
	s.logger.Info("proxy listening", "address", addr.String(), "upstream", s.cfg.Upstream)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down proxy", "timeout", s.cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("server: shutdown: %w", err)
	}
	<-errCh
	s.logger.Info("proxy stopped")
	return nil
}

func (s *Server) reverseProxy(upstream *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		ErrorLog: slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.WarnContext(r.Context(), "upstream request failed", "error", err)
			middleware.WriteError(w, r, http.StatusBadGateway, "upstream unavailable")
		},
	}
}

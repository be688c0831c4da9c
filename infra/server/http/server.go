// Package http hosts the dashboard API and the live fleet stream.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"

	"github.com/webitel/shardscope/config"
)

const readHeaderTimeout = 10 * time.Second

type Server struct {
	srv    *http.Server
	addr   string
	logger *slog.Logger

	ln net.Listener
}

// NewRouter builds the shared router; handler modules mount their routes on it.
func NewRouter(logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		RequestID,
		AccessLog(logger.With("component", "http")),
	)
	return r
}

func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		addr:   addr,
		logger: logger.With("component", "http_server"),
	}
}

// Start binds the listener synchronously so address errors fail app start.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", s.addr, err)
	}
	s.ln = ln

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err)
		}
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Addr is the bound address, available after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

var Module = fx.Module("http-server",
	fx.Provide(
		NewRouter,
		fx.Annotate(
			func(r *chi.Mux) *chi.Mux { return r },
			fx.As(new(chi.Router)),
		),
		func(cfg *config.Config, r *chi.Mux, logger *slog.Logger) *Server {
			return New(cfg.HTTP.Addr, r, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Stop,
		})
	}),
)

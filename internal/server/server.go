package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"

	"github.com/fr0stylo/ledgerlink/internal/observability"
)

// RouteRegister registers Echo routes.
type RouteRegister interface {
	RegisterRoutes(s *echo.Echo)
}

// Server holds the Echo instance.
type Server struct {
	e *echo.Echo
}

// Config tunes the HTTP stack.
type Config struct {
	// BodyLimit caps request bodies on every route except RawBodyPaths.
	BodyLimit string
	// RawBodyPaths are routes whose handlers bound and answer for their own
	// bodies, such as the signed webhook endpoint.
	RawBodyPaths []string
}

// New creates a new server instance.
func New(log *slog.Logger, cfg Config) *Server {
	e := echo.New()

	limit := cfg.BodyLimit
	if limit == "" {
		limit = "1M"
	}
	rawBody := make(map[string]struct{}, len(cfg.RawBodyPaths))
	for _, p := range cfg.RawBodyPaths {
		rawBody[p] = struct{}{}
	}

	e.HideBanner = true
	e.HidePort = true

	e.Use(slogecho.NewWithConfig(log, slogecho.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
		Filters:          []slogecho.Filter{slogecho.IgnorePath(observability.HealthPath)},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: limit,
		Skipper: func(c echo.Context) bool {
			_, ok := rawBody[c.Path()]
			return ok
		},
	}))
	e.Use(observability.EchoMiddleware())
	e.Use(observability.EchoSpanEnrichmentMiddleware())

	return &Server{
		e: e,
	}
}

// RegisterRouter attaches a route registrar.
func (s *Server) RegisterRouter(r RouteRegister) {
	r.RegisterRoutes(s.e)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start(addr string) error {
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

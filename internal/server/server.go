// Package server exposes credential assembly, resolution, detection and the
// mapping registry over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/middleware"
)

type Server struct {
	echo   *echo.Echo
	http   *http.Server
	logger ectologger.Logger
}

// Options are the collaborators of the HTTP surface
type Options struct {
	Config   config.Config
	Handlers *Handlers
	Health   *health.Checker
	// Verifier authenticates API requests. nil leaves the API open.
	Verifier middleware.TokenVerifier
	Logger   ectologger.Logger
}

func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(opts.Logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(opts.Config.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(opts.Logger))

	opts.Health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if opts.Verifier != nil {
		api.Use(middleware.Authentication(opts.Logger, opts.Verifier))
	}
	RegisterRoutes(api, opts.Handlers)

	read, write, idle, readHeader := opts.Config.ServerTimeouts()
	return &Server{
		echo: e,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Config.Port),
			ReadTimeout:       read,
			WriteTimeout:      write,
			IdleTimeout:       idle,
			ReadHeaderTimeout: readHeader,
			MaxHeaderBytes:    opts.Config.MaxHeaderBytes,
		},
		logger: opts.Logger,
	}
}

func RegisterRoutes(api *echo.Group, h *Handlers) {
	api.POST("/credentials/:system", h.Assemble)
	api.POST("/detect", h.Detect)
	api.POST("/columns/classify", h.ClassifyColumns)

	api.GET("/mappings/:system", h.ListMappings)
	api.GET("/mappings/:system/:entity_type/:external_id", h.LookupMapping)
	api.PUT("/mappings", h.UpsertMapping)

	api.GET("/resolve/:kind/:code", h.Resolve)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Infof("Listening on %s", s.http.Addr)
	if err := s.echo.StartServer(s.http); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

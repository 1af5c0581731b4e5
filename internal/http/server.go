// Package http provides the HTTP API for tcgd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tcgd/internal/intake"
	"github.com/fyrsmithlabs/tcgd/internal/logging"
	"github.com/fyrsmithlabs/tcgd/internal/pipeline"
)

// Router is the conversational intake surface.
type Router interface {
	Route(ctx context.Context, prompt string) (*intake.Result, error)
}

// Pipeline is the orchestrator surface the server drives.
type Pipeline interface {
	Start(ctx context.Context, prompt string) (*pipeline.AdvanceResponse, error)
	Advance(ctx context.Context, ar pipeline.AdvanceRequest) (*pipeline.AdvanceResponse, error)
}

// RequestReader is the read-only request inspection surface.
type RequestReader interface {
	Get(ctx context.Context, id string) (*pipeline.Request, error)
}

// Server provides HTTP endpoints for tcgd.
type Server struct {
	echo     *echo.Echo
	router   Router
	pipeline Pipeline
	requests RequestReader
	tools    *Tools
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server. tools may be nil to disable the
// direct tool endpoints.
func NewServer(router Router, pl Pipeline, requests RequestReader, tools *Tools, logger *logging.Logger, cfg *Config) (*Server, error) {
	if router == nil {
		return nil, fmt.Errorf("router cannot be nil")
	}
	if pl == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if requests == nil {
		return nil, fmt.Errorf("request reader cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Propagate the request ID so handler logs carry it.
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			return next(c)
		}
	})
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			// request.id arrives via ContextFields
			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger.Underlying()).MetricsMiddleware())

	s := &Server{
		echo:     e,
		router:   router,
		pipeline: pl,
		requests: requests,
		tools:    tools,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/health", s.handleHealth)

	// Conversational front door
	s.echo.POST("/manager", s.handleManager)

	// Pipeline control
	s.echo.POST("/pipeline/start", s.handleStart)
	s.echo.POST("/pipeline/continue", s.handleContinue)
	s.echo.GET("/requests/:id", s.handleRequest)

	// Direct tool access, bypassing the pipeline
	if s.tools != nil {
		s.tools.register(s.echo.Group("/tools"))
	}

	// Prometheus scrape endpoint
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

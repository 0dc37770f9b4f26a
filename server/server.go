// Package server exposes the retrieval tools over HTTP: one route per
// tool, a schema listing for agent bootstrap, health and metrics.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/talklens/talklens/agent"
	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/metrics"
)

// Server wraps the echo instance and its lifecycle.
type Server struct {
	e       *echo.Echo
	profile *profile.Profile
	logger  *slog.Logger
}

// NewServer builds the HTTP surface over a tool registry. exporter may
// be nil, which drops the /metrics route.
func NewServer(p *profile.Profile, registry *agent.Registry, exporter *metrics.PrometheusExporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.InfoContext(c.Request().Context(), "request",
				"method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	// Per-client token bucket; tool calls fan out into index probes so a
	// single chatty client can saturate the store.
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(10),
			Burst:     30,
			ExpiresIn: 3 * time.Minute,
		},
	)))

	s := &Server{e: e, profile: p, logger: logger}
	s.registerRoutes(registry, exporter)
	return s
}

func (s *Server) registerRoutes(registry *agent.Registry, exporter *metrics.PrometheusExporter) {
	s.e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": s.profile.Version})
	})
	if exporter != nil {
		s.e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	api := s.e.Group("/api/v1")
	api.GET("/tools", func(c echo.Context) error {
		type toolInfo struct {
			Name        string                 `json:"name"`
			Description string                 `json:"description"`
			Parameters  map[string]interface{} `json:"parameters"`
		}
		tools := registry.List()
		out := make([]toolInfo, 0, len(tools))
		for _, t := range tools {
			out = append(out, toolInfo{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"tools": out})
	})
	api.POST("/tools/:name", s.runTool(registry))
}

// runTool dispatches one tool call. The tool's envelope is the response
// body either way; HTTP status only distinguishes unknown tools and
// transport-level failures.
func (s *Server) runTool(registry *agent.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param("name")
		tool, ok := registry.Get(name)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown tool %q", name))
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
		}

		out, err := tool.Run(c.Request().Context(), string(body))
		if err != nil {
			// Tools render their own error envelopes; a Go error here
			// means the envelope itself could not be produced.
			s.logger.ErrorContext(c.Request().Context(), "tool dispatch failed", "tool", name, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "tool dispatch failed")
		}
		return c.JSONBlob(http.StatusOK, []byte(out))
	}
}

// Start runs the listener until Shutdown.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	return s.e.Start(addr)
}

// Shutdown drains in-flight requests with a bounded grace period.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown", "error", err)
	}
}

// Package server exposes the chat exchange over HTTP with server-sent events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/perbu/docchat/pkg/chat"
)

// Coordinator runs one exchange, pushing events through emit.
type Coordinator interface {
	Run(ctx context.Context, clientID, question string, emit chat.EmitFunc) error
}

// Server provides the HTTP endpoints for document chat.
type Server struct {
	echo        *echo.Echo
	coordinator Coordinator
	logger      *zap.Logger
	config      *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
}

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// NewServer creates the HTTP server around a chat coordinator.
func NewServer(coordinator Coordinator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.AllowOrigins,
			AllowCredentials: true,
		}))
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:        e,
		coordinator: coordinator,
		logger:      logger,
		config:      cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/chat", s.handleChat)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat runs one exchange and streams its events as SSE frames.
// Response headers are committed lazily on the first event, so failures
// before any output can still map to a status code.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	resp := c.Response()
	streaming := false
	emit := func(ev chat.Event) error {
		if !streaming {
			resp.Header().Set(echo.HeaderContentType, "text/event-stream")
			resp.Header().Set("Cache-Control", "no-cache")
			resp.Header().Set("Connection", "keep-alive")
			resp.WriteHeader(http.StatusOK)
			streaming = true
		}
		return writeFrame(resp, ev)
	}

	clientID := c.RealIP()
	err := s.coordinator.Run(c.Request().Context(), clientID, req.Message, emit)
	if err == nil || streaming {
		// In-stream failures were already reported as a terminal event
		// (or the caller is gone); the response is committed either way.
		if err != nil {
			s.logger.Debug("exchange ended mid-stream",
				zap.String("client", clientID), zap.Error(err))
		}
		return nil
	}

	switch {
	case errors.Is(err, chat.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"detail": "Too many requests. Please wait a moment.",
		})
	case errors.Is(err, chat.ErrRetrievalFailed):
		s.logger.Error("context retrieval failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to retrieve context")
	default:
		s.logger.Error("exchange failed before streaming", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate answer")
	}
}

// writeFrame writes one SSE frame (data: <JSON>\n\n) and flushes it so
// increments reach the caller as they arrive.
func writeFrame(resp *echo.Response, ev chat.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
		return err
	}
	resp.Flush()
	return nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

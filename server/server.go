// Package server exposes the HTTP surface: the chat API, the chat-platform
// webhooks, the notification feed, and maintenance endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nudgebot/nudge/internal/profile"
	"github.com/nudgebot/nudge/plugin/ai/assistant"
	"github.com/nudgebot/nudge/plugin/slack"
	"github.com/nudgebot/nudge/server/middleware"
	"github.com/nudgebot/nudge/server/runner/notifier"
	"github.com/nudgebot/nudge/store"
)

// Server holds the HTTP surface and its collaborators.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	assistant  *assistant.Assistant
	sender     slack.Sender
	channels   *notifier.ChannelDirectory
	dedup      *EventDedup
	logger     *slog.Logger
}

// NewServer creates the server and registers all routes.
func NewServer(p *profile.Profile, s *store.Store, asst *assistant.Assistant, sender slack.Sender, channels *notifier.ChannelDirectory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		Profile:    p,
		Store:      s,
		echoServer: e,
		assistant:  asst,
		sender:     sender,
		channels:   channels,
		dedup:      NewEventDedup(p.EventDedupTTL),
		logger:     logger,
	}

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/healthz", srv.handleHealthz)

	limiter := middleware.NewRateLimiter()
	api := e.Group("/api/v1", limiter.Middleware())
	api.POST("/chat", srv.handleChat)
	api.GET("/notifications", srv.handleNotifications)
	api.GET("/memories", srv.handleMemories)
	api.GET("/stats", srv.handleStats)
	api.POST("/cron/archive_overdue", srv.handleArchiveOverdue)

	slackGroup := e.Group("/slack", limiter.Middleware(), srv.slackSignatureMiddleware)
	slackGroup.POST("/events", srv.handleSlackEvents)
	slackGroup.POST("/commands", srv.handleSlackCommand)
	slackGroup.POST("/interactions", srv.handleSlackInteraction)

	return srv
}

// Start begins serving. It blocks until the listener fails or Shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	s.logger.Info("http server listening", "addr", addr)
	if err := s.echoServer.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down http server", "error", err)
	}
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echoServer
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	s.logger.Warn("http request failed",
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"status", code,
		"error", err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]any{"error": msg})
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	if err := s.Store.GetDriver().GetDB().PingContext(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": s.Profile.Version})
}

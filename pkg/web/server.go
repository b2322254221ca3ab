// Package web serves the relay over HTTP: static assets, the /ws event
// endpoint, health and metrics.
package web

import (
	"context"
	"log/slog"
	"net"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/llm-relay/internal/log"
	"github.com/teslashibe/llm-relay/pkg/hub"
	"github.com/teslashibe/llm-relay/pkg/relay"
)

// Version is reported by /health.
var Version = "dev"

// Config configures the HTTP surface.
type Config struct {
	// PublicDir is served at "/". Empty disables static files.
	PublicDir string

	// Provider names the backend in /health.
	Provider string

	// Debug enables per-request access logs.
	Debug bool
}

// Server is the relay's HTTP server
type Server struct {
	app        *fiber.App
	hub        *hub.Hub
	dispatcher *relay.Dispatcher
	cfg        Config
	logger     *slog.Logger
}

// NewServer wires the routes. The hub must already be running.
func NewServer(cfg Config, h *hub.Hub, d *relay.Dispatcher) *Server {
	s := &Server{
		hub:        h,
		dispatcher: d,
		cfg:        cfg,
		logger:     log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "llm-relay",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleEvents))

	if cfg.PublicDir != "" {
		app.Static("/", cfg.PublicDir)
	}

	s.app = app
	return s
}

// App exposes the Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// handleHealth reports liveness and the session count
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"version":  Version,
		"provider": s.cfg.Provider,
		"sessions": s.hub.ClientCount(),
	})
}

// handleEvents pumps one browser session until it disconnects
func (s *Server) handleEvents(c *websocket.Conn) {
	s.hub.Serve(c, func(client *hub.Client, data []byte) {
		s.dispatcher.Handle(client, data)
	})
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections, then lets in-flight requests
// publish their outcomes.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.dispatcher.Close()
	return err
}

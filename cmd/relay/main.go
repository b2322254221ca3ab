// relay: forwards browser websocket events to an LLM provider and
// broadcasts the answers back to every connected session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/llm-relay/internal/config"
	"github.com/teslashibe/llm-relay/internal/httpc"
	"github.com/teslashibe/llm-relay/internal/log"
	"github.com/teslashibe/llm-relay/pkg/hub"
	"github.com/teslashibe/llm-relay/pkg/inference"
	"github.com/teslashibe/llm-relay/pkg/metrics"
	"github.com/teslashibe/llm-relay/pkg/probe"
	"github.com/teslashibe/llm-relay/pkg/relay"
	"github.com/teslashibe/llm-relay/pkg/web"
)

var (
	version    = "1.0.0"
	configPath = flag.String("config", "", "Path to relay.yaml (default: $RELAY_CONFIG or ./relay.yaml)")
	port       = flag.Int("port", 0, "HTTP server port (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

// Exit statuses.
const (
	exitFailure           = 1
	exitMissingCredential = 2
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Init("info")
		log.Error("configuration error", "error", err)
		if errors.Is(err, config.ErrMissingCredential) {
			return exitMissingCredential
		}
		return exitFailure
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	log.Init(cfg.Log.Level)
	web.Version = version

	logger := log.Component("main")
	logger.Info("starting llm-relay", "version", version, "provider", cfg.Provider.Kind, "base_url", cfg.Provider.BaseURL)

	provider, err := inference.New(cfg.Provider.Kind,
		inference.WithBaseURL(cfg.Provider.BaseURL),
		inference.WithAPIKey(cfg.Provider.APIKey),
		inference.WithModels(inference.Models{
			Generate: cfg.Models.Generate,
			Chat:     cfg.Models.Chat,
			Vision:   cfg.Models.Vision,
		}),
		inference.WithHostedMaxTokens(cfg.Provider.HostedMaxTokens),
		inference.WithImageMaxTokens(cfg.Provider.ImageMaxTokens),
		inference.WithHTTPClient(httpc.NewClient(0)),
		inference.WithLogger(log.L()),
	)
	if err != nil {
		logger.Error("provider setup failed", "error", err)
		if errors.Is(err, inference.ErrNoAPIKey) {
			return exitMissingCredential
		}
		return exitFailure
	}
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The probe only informs; the server starts regardless.
	go probe.Run(ctx, provider, log.Component("probe"), cfg.Provider.ProbeTimeout)

	sessions := hub.New("events",
		hub.WithMaxMessageSize(cfg.Server.MaxMessageBytes),
		hub.WithSessionObserver(metrics.SetSessions),
	)
	hubCtx, stopHub := context.WithCancel(ctx)
	go sessions.Run(hubCtx)

	dispatcher := relay.New(provider, sessions, relay.Config{
		Defaults: cfg.Defaults,
		Timeout:  cfg.Provider.RequestTimeout,
		Scope:    relay.Scope(cfg.Server.Broadcast),
	})

	server := web.NewServer(web.Config{
		PublicDir: cfg.Server.PublicDir,
		Provider:  provider.Name(),
		Debug:     cfg.Log.Level == "debug",
	}, sessions, dispatcher)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("it works", "url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port), "ws", fmt.Sprintf("ws://localhost:%d/ws", cfg.Server.Port))
		errCh <- server.Listen(addr)
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	status := 0
	select {
	case <-quit:
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			status = exitFailure
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	stopHub()
	<-sessions.Done()

	logger.Info("goodbye")
	return status
}

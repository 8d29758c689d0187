// Command toolrelay serves the tool-calling agent loop over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/toolrelay"
	"github.com/hupe1980/toolrelay/config"
	"github.com/hupe1980/toolrelay/logging"
	"github.com/hupe1980/toolrelay/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  cfg.Level(),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	srv, err := newServer(cfg, logger)
	if err != nil {
		log.Fatalf("new server: %v", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Start()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrCh:
		if err != nil {
			log.Fatalf("server exited: %v", err)
		}
		return
	case <-sigCtx.Done():
	}

	logger.Info("toolrelay.shutdown", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown server: %v", err)
	}

	if err := <-serverErrCh; err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}

func newServer(cfg config.Config, logger logging.Logger) (*server.Server, error) {
	handler, err := newHandler(cfg, logger)
	if err != nil {
		return nil, err
	}
	return server.New(cfg.Addr, handler, logger)
}

func newHandler(cfg config.Config, logger logging.Logger) (*server.Handler, error) {
	llm, err := newModel(cfg)
	if err != nil {
		return nil, err
	}

	relay, err := toolrelay.New(llm, func(o *toolrelay.Options) {
		o.WorkDir = cfg.WorkDir
		o.AssistantName = cfg.AssistantName
		o.MaxTurns = cfg.MaxTurns
		o.Logger = logger
	})
	if err != nil {
		return nil, fmt.Errorf("new relay: %w", err)
	}

	info := relay.ModelInfo()
	logger.Info("toolrelay.configured",
		"provider", info.Provider,
		"model", info.Name,
		"tools", relay.Registry().Names(),
		"max_turns", cfg.MaxTurns,
	)

	return server.NewHandler(relay, func(o *server.Options) {
		o.Logger = logger
		o.AllowedOrigin = cfg.AllowedOrigin
		o.DefaultTemperature = cfg.DefaultTemperature
		o.DefaultMaxOutputTokens = cfg.DefaultMaxOutputTokens
		o.MaxBodyBytes = cfg.MaxBodyBytes
	}), nil
}

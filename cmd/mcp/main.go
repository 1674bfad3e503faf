package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/convoy/internal/app"
	mcpinternal "github.com/felixgeelhaar/convoy/internal/mcp"
	"github.com/felixgeelhaar/convoy/pkg/config"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

func main() {
	logger := observability.NewLogger(observability.LogConfig{Service: "convoy-mcp"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.NewLogger(observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, "convoy-mcp"))

	operator, err := cfg.Operator()
	if err != nil {
		logger.Error("mcp server needs an operator", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if container.LocalBus != nil {
		processor := container.OutboxProcessor()
		if err := processor.Start(ctx); err != nil {
			logger.Error("failed to start outbox processor", "error", err)
			os.Exit(1)
		}
		defer processor.Stop()
	}

	cliApp := mcpinternal.NewCLIApp(container, operator)

	if err := mcpinternal.Serve(ctx, cfg, cliApp, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

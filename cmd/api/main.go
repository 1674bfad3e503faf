package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/convoy/adapter/api"
	"github.com/felixgeelhaar/convoy/internal/app"
	"github.com/felixgeelhaar/convoy/pkg/config"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

func main() {
	logger := observability.NewLogger(observability.LogConfig{Service: "convoy-api"})
	logger.Info("starting convoy api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.NewLogger(observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, "convoy-api"))

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	// With no broker the worker cannot consume, so the API relays its own
	// outbox to the in-process bus.
	if container.LocalBus != nil {
		processor := container.OutboxProcessor()
		if err := processor.Start(ctx); err != nil {
			logger.Error("failed to start outbox processor", "error", err)
			os.Exit(1)
		}
		defer processor.Stop()
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.APIAddr
	serverCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	serverCfg.Metrics = container.Metrics

	server := api.NewServer(serverCfg, api.NewRouteHandler(container, logger), container.Health, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("api server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown error", "error", err)
	}
	logger.Info("api stopped")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/adapter/cli/fleet"
	"github.com/felixgeelhaar/convoy/adapter/cli/mcp"
	"github.com/felixgeelhaar/convoy/adapter/cli/route"
	"github.com/felixgeelhaar/convoy/internal/app"
	"github.com/felixgeelhaar/convoy/pkg/config"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  observability.LogLevelWarn,
		Format: observability.LogFormatText,
		Output: os.Stderr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	// Results go to stdout; logs stay on stderr at warn unless debugging.
	if observability.ParseLogLevel(cfg.LogLevel) == observability.LogLevelDebug {
		logger = observability.NewLogger(observability.LogConfig{
			Level:  observability.LogLevelDebug,
			Output: os.Stderr,
		})
	}
	cli.SetLogger(logger)

	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		// version and help still work without a database.
		logger.Warn("failed to initialize container", "error", err)
	} else {
		defer container.Close()

		// Without a broker nothing else relays the outbox, so the CLI
		// drains what it wrote before exiting.
		if container.LocalBus != nil {
			defer func() {
				if err := container.OutboxProcessor().ProcessOnce(context.Background()); err != nil {
					logger.Warn("outbox relay failed", "error", err)
				}
			}()
		}

		operator, err := cfg.Operator()
		if err != nil && cfg.OperatorID != "" {
			logger.Error("invalid operator", "error", err)
			return 1
		}
		if err != nil {
			operator = uuid.Nil
		}
		cliApp = cli.NewApp(container, operator)
	}

	cli.SetApp(cliApp)
	cli.AddCommand(route.Cmd)
	cli.AddCommand(fleet.Cmd)
	cli.AddCommand(mcp.Cmd)

	if err := cli.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.Describe(err))
		return 1
	}
	return 0
}

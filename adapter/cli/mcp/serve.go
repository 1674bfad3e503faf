package mcp

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	mcpinternal "github.com/felixgeelhaar/convoy/internal/mcp"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

var addr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server on MCP_ADDR using the CLI's database and operator.

Outbox messages written through the tools are relayed while the server runs
when no broker is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		if _, err := app.Actor(); err != nil {
			return err
		}

		cfg := *app.Config
		if addr != "" {
			cfg.MCPAddr = addr
		}

		logCfg := observability.LogConfigFor(cfg.AppEnv, cfg.LogLevel, "convoy-mcp")
		logCfg.Output = cmd.ErrOrStderr()
		logger := observability.NewLogger(logCfg)
		ctx := cmd.Context()

		if app.LocalBus != nil {
			processor := app.OutboxProcessor()
			if err := processor.Start(ctx); err != nil {
				return err
			}
			defer processor.Stop()
		}

		err = mcpinternal.Serve(ctx, &cfg, app, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides MCP_ADDR)")
}

package route

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/security"
)

var planFile string

var createCmd = &cobra.Command{
	Use:   "create --file <plan.json>",
	Short: "Create a route from a plan file",
	Long: `Create a route and its stops from a JSON plan.

The plan has the same shape as the body of POST /routes. A route without a
driver starts in DRIVER_MISSING.

Examples:
  convoy route create --file monday-am.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}

		raw, err := security.ReadFile(planFile)
		if err != nil {
			return fmt.Errorf("failed to read plan: %w", err)
		}
		var plan commands.RoutePlanRequest
		if err := json.Unmarshal(raw, &plan); err != nil {
			return fmt.Errorf("failed to parse plan: %w", err)
		}
		createRoute, err := plan.Command(actor)
		if err != nil {
			return err
		}

		route, err := app.CreateRouteHandler.Handle(cmd.Context(), createRoute)
		if err != nil {
			return fmt.Errorf("failed to create route: %w", err)
		}
		return printRoute(cmd.OutOrStdout(), route)
	},
}

func init() {
	createCmd.Flags().StringVarP(&planFile, "file", "f", "", "path to the JSON route plan")
	_ = createCmd.MarkFlagRequired("file")
}

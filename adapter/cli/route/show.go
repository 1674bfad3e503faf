package route

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
)

var showCmd = &cobra.Command{
	Use:   "show <route-id>",
	Short: "Show a route with its stops, delays and flags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		routeID, err := cli.ParseID("route", args[0])
		if err != nil {
			return err
		}

		route, err := app.GetRouteHandler.Handle(cmd.Context(), queries.GetRouteQuery{RouteID: routeID})
		if err != nil {
			return err
		}
		return printRoute(cmd.OutOrStdout(), route)
	},
}

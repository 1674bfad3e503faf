package route

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
)

var listDate string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the routes of a day",
	Long: `List the routes scheduled for a service date.

Examples:
  convoy route list
  convoy route list --date 2025-03-03`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}

		date := time.Now()
		if listDate != "" {
			date, err = time.Parse(time.DateOnly, listDate)
			if err != nil {
				return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
			}
		}

		routes, err := app.ListRoutesByDateHandler.Handle(cmd.Context(), queries.ListRoutesByDateQuery{Date: date})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, routes)
		}
		if len(routes) == 0 {
			fmt.Fprintf(out, "No routes on %s.\n", date.Format(time.DateOnly))
			return nil
		}
		for _, r := range routes {
			fmt.Fprintf(out, "%s  %s-%s  %-15s %-24s %d/%d stops",
				r.ID, r.EstimatedStart.Format(clock), r.EstimatedEnd.Format(clock),
				r.Status, truncate(r.Name, 24), r.ExecutedStops+r.CancelledStops, r.StopCount)
			if r.Delay.DelayedStopCount > 0 {
				fmt.Fprintf(out, "  +%d min", r.Delay.MaxDelayMinutes)
			}
			if r.OpenFlags > 0 {
				fmt.Fprintf(out, "  %d flag(s)", r.OpenFlags)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listDate, "date", "d", "", "service date (YYYY-MM-DD), defaults to today")
}

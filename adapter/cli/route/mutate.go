package route

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// expectedVersion backs the --version flag shared by mutating commands.
var expectedVersion int

func addVersionFlag(cmd *cobra.Command) {
	cmd.Flags().IntVar(&expectedVersion, "version", -1, "fail unless the route is still at this version")
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <route-id> <stop-id>...",
	Short: "Set the stop order of a route",
	Long: `Set the order of every stop on a route. Stops are listed in their new
order; each must appear exactly once.

Examples:
  convoy route reorder 7f1c... 2a9e... 0b44... 93d1...`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}
		routeID, err := cli.ParseID("route", args[0])
		if err != nil {
			return err
		}

		order := make([]domain.StopPosition, 0, len(args)-1)
		for i, arg := range args[1:] {
			stopID, err := cli.ParseID("stop", arg)
			if err != nil {
				return err
			}
			order = append(order, domain.StopPosition{StopID: stopID, Position: i + 1})
		}

		route, err := app.ReorderStopsHandler.Handle(cmd.Context(), commands.ReorderStopsCommand{
			RouteID:         routeID,
			Order:           order,
			Actor:           actor,
			ExpectedVersion: cli.ExpectedVersion(expectedVersion),
		})
		if err != nil {
			return err
		}
		return printRoute(cmd.OutOrStdout(), route)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <route-id> <status>",
	Short: "Move a route to a new status",
	Long: `Move a route along its lifecycle.

Statuses: PLANNED, IN_PROGRESS, COMPLETED, CANCELLED, DRIVER_MISSING.

Examples:
  convoy route status 7f1c... in-progress
  convoy route status 7f1c... cancelled --version 4`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}
		routeID, err := cli.ParseID("route", args[0])
		if err != nil {
			return err
		}
		status, err := domain.ParseStatus(args[1])
		if err != nil {
			return err
		}

		route, err := app.ChangeRouteStatusHandler.Handle(cmd.Context(), commands.ChangeRouteStatusCommand{
			RouteID:         routeID,
			Status:          status,
			Actor:           actor,
			ExpectedVersion: cli.ExpectedVersion(expectedVersion),
		})
		if err != nil {
			return err
		}
		return printRoute(cmd.OutOrStdout(), route)
	},
}

var (
	outcomeNotes string
	outcomeAt    string
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome <stop-id> <completed|no-show|refused>",
	Short: "Record what happened at a stop",
	Long: `Record the outcome of a stop on an in-progress route. An outcome can be
recorded once.

Examples:
  convoy route outcome 2a9e... completed
  convoy route outcome 2a9e... no-show --notes "nobody at the door" --at 2025-03-03T07:42:00Z`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}
		stopID, err := cli.ParseID("stop", args[0])
		if err != nil {
			return err
		}
		outcome, err := domain.ParseOutcome(args[1])
		if err != nil {
			return err
		}

		record := commands.RecordStopOutcomeCommand{
			StopID:          stopID,
			Outcome:         outcome,
			Notes:           outcomeNotes,
			Actor:           actor,
			ExpectedVersion: cli.ExpectedVersion(expectedVersion),
		}
		if outcomeAt != "" {
			at, err := time.Parse(time.RFC3339, outcomeAt)
			if err != nil {
				return fmt.Errorf("invalid --at (use RFC 3339): %w", err)
			}
			record.ActualTime = &at
		}

		stop, err := app.RecordStopOutcomeHandler.Handle(cmd.Context(), record)
		if err != nil {
			return err
		}
		return printStop(cmd.OutOrStdout(), stop)
	},
}

var cancelReason string

var cancelStopCmd = &cobra.Command{
	Use:   "cancel-stop <stop-id>",
	Short: "Cancel a single stop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}
		stopID, err := cli.ParseID("stop", args[0])
		if err != nil {
			return err
		}

		stop, err := app.CancelStopHandler.Handle(cmd.Context(), commands.CancelStopCommand{
			StopID:          stopID,
			Reason:          cancelReason,
			Actor:           actor,
			ExpectedVersion: cli.ExpectedVersion(expectedVersion),
		})
		if err != nil {
			return err
		}
		return printStop(cmd.OutOrStdout(), stop)
	},
}

var clearAssignment bool

var assignDriverCmd = &cobra.Command{
	Use:   "assign-driver <route-id> [driver-id]",
	Short: "Assign or clear the driver of a route",
	Long: `Assign an active driver to a route, or clear the assignment with --clear.
A planned route without a driver moves to DRIVER_MISSING; assigning one
moves it back to PLANNED.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}
		routeID, driverID, err := assignmentArgs(args, "driver")
		if err != nil {
			return err
		}

		route, err := app.ReassignDriverHandler.Handle(cmd.Context(), commands.ReassignDriverCommand{
			RouteID:         routeID,
			DriverID:        driverID,
			Actor:           actor,
			ExpectedVersion: cli.ExpectedVersion(expectedVersion),
		})
		if err != nil {
			return err
		}
		return printRoute(cmd.OutOrStdout(), route)
	},
}

var assignVehicleCmd = &cobra.Command{
	Use:   "assign-vehicle <route-id> [vehicle-id]",
	Short: "Assign or clear the vehicle of a route",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}
		routeID, vehicleID, err := assignmentArgs(args, "vehicle")
		if err != nil {
			return err
		}

		route, err := app.ReassignVehicleHandler.Handle(cmd.Context(), commands.ReassignVehicleCommand{
			RouteID:         routeID,
			VehicleID:       vehicleID,
			Actor:           actor,
			ExpectedVersion: cli.ExpectedVersion(expectedVersion),
		})
		if err != nil {
			return err
		}
		return printRoute(cmd.OutOrStdout(), route)
	},
}

func assignmentArgs(args []string, kind string) (uuid.UUID, *uuid.UUID, error) {
	routeID, err := cli.ParseID("route", args[0])
	if err != nil {
		return uuid.Nil, nil, err
	}
	switch {
	case len(args) == 1 && !clearAssignment:
		return uuid.Nil, nil, fmt.Errorf("give a %s ID or --clear", kind)
	case len(args) == 2 && clearAssignment:
		return uuid.Nil, nil, fmt.Errorf("--clear takes no %s ID", kind)
	case clearAssignment:
		return routeID, nil, nil
	}
	id, err := cli.ParseID(kind, args[1])
	if err != nil {
		return uuid.Nil, nil, err
	}
	return routeID, &id, nil
}

var seriesCmd = &cobra.Command{
	Use:   "series <route-id> <rrule>",
	Short: "Make a route the template of a recurring series",
	Long: `Attach a recurrence pattern to a planned route. The pattern is an
RFC 5545 RRULE; the next occurrences are printed as a preview.

Examples:
  convoy route series 7f1c... "FREQ=WEEKLY;BYDAY=MO,WE,FR"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}
		routeID, err := cli.ParseID("route", args[0])
		if err != nil {
			return err
		}

		result, err := app.CreateSeriesHandler.Handle(cmd.Context(), commands.CreateSeriesCommand{
			RouteID:         routeID,
			Pattern:         args[1],
			Actor:           actor,
			ExpectedVersion: cli.ExpectedVersion(expectedVersion),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, result)
		}
		fmt.Fprintf(out, "Series created: %s\n", result.SeriesID)
		fmt.Fprintf(out, "  pattern: %s\n", result.Pattern)
		for _, next := range result.NextOccurrences {
			fmt.Fprintf(out, "  next:    %s\n", next.Format("Mon 2006-01-02 15:04"))
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <route-id>",
	Short:   "Delete a route and its stops",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}
		routeID, err := cli.ParseID("route", args[0])
		if err != nil {
			return err
		}

		if err := app.DeleteRouteHandler.Handle(cmd.Context(), commands.DeleteRouteCommand{
			RouteID:         routeID,
			Actor:           actor,
			ExpectedVersion: cli.ExpectedVersion(expectedVersion),
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Route deleted: %s\n", routeID)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reorderCmd, statusCmd, outcomeCmd, cancelStopCmd, assignDriverCmd, assignVehicleCmd, seriesCmd, deleteCmd} {
		addVersionFlag(c)
	}

	outcomeCmd.Flags().StringVar(&outcomeNotes, "notes", "", "free-text notes")
	outcomeCmd.Flags().StringVar(&outcomeAt, "at", "", "when it happened (RFC 3339), defaults to now")

	cancelStopCmd.Flags().StringVarP(&cancelReason, "reason", "r", "", "why the stop is cancelled")
	_ = cancelStopCmd.MarkFlagRequired("reason")

	assignDriverCmd.Flags().BoolVar(&clearAssignment, "clear", false, "remove the current driver")
	assignVehicleCmd.Flags().BoolVar(&clearAssignment, "clear", false, "remove the current vehicle")
}

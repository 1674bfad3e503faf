package route

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

var delaysAt string

var delaysCmd = &cobra.Command{
	Use:   "delays <route-id>",
	Short: "Summarize the running delay of a route",
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

		q := queries.GetDelaySummaryQuery{RouteID: routeID}
		if delaysAt != "" {
			at, err := time.Parse(time.RFC3339, delaysAt)
			if err != nil {
				return fmt.Errorf("invalid --at (use RFC 3339): %w", err)
			}
			q.At = &at
		}

		summary, err := app.GetDelaySummaryHandler.Handle(cmd.Context(), q)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, queries.NewDelaySummaryDTO(summary))
		}
		if summary.DelayedStopCount == 0 {
			fmt.Fprintln(out, "On time.")
			return nil
		}
		fmt.Fprintf(out, "%d stop(s) delayed, up to %d min\n", summary.DelayedStopCount, summary.MaxDelayMinutes)
		if summary.LastDetectedAt != nil {
			fmt.Fprintf(out, "  last detected: %s\n", summary.LastDetectedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var includeCleared bool

var flagsCmd = &cobra.Command{
	Use:   "flags <route-id>",
	Short: "List stops flagged for review after an absence was withdrawn",
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

		flags, err := app.ListReviewFlagsHandler.Handle(cmd.Context(), queries.ListReviewFlagsQuery{
			RouteID:        routeID,
			IncludeCleared: includeCleared,
		})
		if err != nil {
			return err
		}
		return printFlags(cmd.OutOrStdout(), flags)
	},
}

var clearFlagCmd = &cobra.Command{
	Use:   "clear-flag <route-id> <flag-id>",
	Short: "Mark a review flag as handled",
	Args:  cobra.ExactArgs(2),
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
		flagID, err := cli.ParseID("flag", args[1])
		if err != nil {
			return err
		}

		flag, err := app.ClearReviewFlagHandler.Handle(cmd.Context(), commands.ClearReviewFlagCommand{
			RouteID: routeID,
			FlagID:  flagID,
			Actor:   actor,
		})
		if err != nil {
			return err
		}
		return printFlags(cmd.OutOrStdout(), []queries.ReviewFlagDTO{*flag})
	},
}

var (
	absenceID     string
	absenceChild  string
	absenceReason string
	absenceStops  []string
)

var absenceCancelledCmd = &cobra.Command{
	Use:   "absence-cancelled",
	Short: "Flag stops whose absence was withdrawn",
	Long: `Record that an absence was withdrawn. Each stop that was cancelled
because of it is flagged for review; nothing is reinstated automatically.

Stops are given as <route-id>:<stop-id>.

Examples:
  convoy route absence-cancelled --absence 51c0... --stop 7f1c...:2a9e... --stop 7f1c...:0b44...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		actor, err := app.Actor()
		if err != nil {
			return err
		}

		propagate := commands.PropagateAbsenceCancellationCommand{Reason: absenceReason, Actor: actor}
		if propagate.AbsenceID, err = cli.ParseID("absence", absenceID); err != nil {
			return err
		}
		if absenceChild != "" {
			if propagate.ChildID, err = cli.ParseID("child", absenceChild); err != nil {
				return err
			}
		}
		for _, raw := range absenceStops {
			ref, err := parseStopRef(raw)
			if err != nil {
				return err
			}
			propagate.AffectedStops = append(propagate.AffectedStops, ref)
		}

		result, err := app.PropagateAbsenceHandler.Handle(cmd.Context(), propagate)
		out := cmd.OutOrStdout()
		if result != nil {
			if cli.JSONOutput() {
				if perr := cli.PrintJSON(out, result); perr != nil {
					return perr
				}
			} else {
				fmt.Fprintf(out, "flagged: %d  already flagged: %d  skipped: %d  missing: %d\n",
					len(result.Flagged), len(result.AlreadyFlagged), len(result.Skipped), len(result.Missing))
			}
		}
		return err
	},
}

func parseStopRef(raw string) (domain.StopRef, error) {
	routePart, stopPart, ok := strings.Cut(raw, ":")
	if !ok {
		return domain.StopRef{}, errors.New("stop must be <route-id>:<stop-id>")
	}
	routeID, err := uuid.Parse(routePart)
	if err != nil {
		return domain.StopRef{}, fmt.Errorf("invalid route ID in %q: %w", raw, err)
	}
	stopID, err := uuid.Parse(stopPart)
	if err != nil {
		return domain.StopRef{}, fmt.Errorf("invalid stop ID in %q: %w", raw, err)
	}
	return domain.StopRef{RouteID: routeID, StopID: stopID}, nil
}

func init() {
	delaysCmd.Flags().StringVar(&delaysAt, "at", "", "observation time (RFC 3339), defaults to now")
	flagsCmd.Flags().BoolVar(&includeCleared, "all", false, "include cleared flags")

	absenceCancelledCmd.Flags().StringVar(&absenceID, "absence", "", "the withdrawn absence")
	absenceCancelledCmd.Flags().StringVar(&absenceChild, "child", "", "the child the absence was for")
	absenceCancelledCmd.Flags().StringVar(&absenceReason, "reason", "", "why the absence was withdrawn")
	absenceCancelledCmd.Flags().StringArrayVar(&absenceStops, "stop", nil, "affected stop as <route-id>:<stop-id> (repeatable)")
	_ = absenceCancelledCmd.MarkFlagRequired("absence")
}

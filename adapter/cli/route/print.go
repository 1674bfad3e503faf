package route

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
)

const clock = "15:04"

func printRoute(w io.Writer, r *queries.RouteDTO) error {
	if cli.JSONOutput() {
		return cli.PrintJSON(w, r)
	}

	fmt.Fprintf(w, "%s (%s)\n", r.Name, r.ID)
	cli.Rule(w)
	fmt.Fprintf(w, "  date:     %s\n", r.ServiceDate)
	fmt.Fprintf(w, "  status:   %s (version %d)\n", r.Status, r.Version)
	fmt.Fprintf(w, "  window:   %s - %s\n", r.EstimatedStart.Format(clock), r.EstimatedEnd.Format(clock))
	fmt.Fprintf(w, "  driver:   %s\n", describeRef(r.DriverID, r.DriverName))
	fmt.Fprintf(w, "  vehicle:  %s\n", describeRef(r.VehicleID, r.VehicleRegistration))
	if r.SeriesID != nil {
		fmt.Fprintf(w, "  series:   %s\n", r.SeriesID)
	}
	if r.Delay.DelayedStopCount > 0 {
		fmt.Fprintf(w, "  delays:   %d stop(s), up to %d min\n", r.Delay.DelayedStopCount, r.Delay.MaxDelayMinutes)
	}
	if len(r.NextStatuses) > 0 {
		fmt.Fprintf(w, "  next:     %s\n", strings.Join(r.NextStatuses, ", "))
	}

	fmt.Fprintln(w)
	if len(r.Stops) == 0 {
		fmt.Fprintln(w, "  no stops")
	}
	for _, s := range r.Stops {
		printStopLine(w, &s)
	}

	open := 0
	for _, f := range r.ReviewFlags {
		if f.Open {
			open++
		}
	}
	if open > 0 {
		fmt.Fprintf(w, "\n  %d stop(s) need review, see `convoy route flags %s`\n", open, r.ID)
	}
	return nil
}

func printStopLine(w io.Writer, s *queries.StopDTO) {
	marker := " "
	if s.NeedsReview {
		marker = "!"
	}
	state := s.State
	if s.Outcome != "" {
		state = s.Outcome
	}
	fmt.Fprintf(w, " %s%2d. %s  %-8s %-28s %s", marker, s.Position, s.EstimatedTime.Format(clock), s.Type, truncate(s.Address.Line1, 28), state)
	if s.Delay != nil {
		fmt.Fprintf(w, "  (+%d min)", s.Delay.Minutes)
	}
	fmt.Fprintf(w, "  [%s]\n", s.ID)
}

func printStop(w io.Writer, s *queries.StopDTO) error {
	if cli.JSONOutput() {
		return cli.PrintJSON(w, s)
	}
	fmt.Fprintf(w, "Stop %d on route %s\n", s.Position, s.RouteID)
	cli.Rule(w)
	fmt.Fprintf(w, "  state:    %s\n", s.State)
	if s.Outcome != "" {
		fmt.Fprintf(w, "  outcome:  %s\n", s.Outcome)
	}
	if s.ActualTime != nil {
		fmt.Fprintf(w, "  actual:   %s\n", s.ActualTime.Format(time.RFC3339))
	}
	if s.CancellationReason != "" {
		fmt.Fprintf(w, "  reason:   %s\n", s.CancellationReason)
	}
	return nil
}

func printFlags(w io.Writer, flags []queries.ReviewFlagDTO) error {
	if cli.JSONOutput() {
		return cli.PrintJSON(w, flags)
	}
	if len(flags) == 0 {
		fmt.Fprintln(w, "No review flags.")
		return nil
	}
	for _, f := range flags {
		state := "open"
		if !f.Open {
			state = "cleared"
		}
		fmt.Fprintf(w, "%s  stop %s  %-7s %s\n", f.ID, f.StopID, state, f.Reason)
	}
	return nil
}

func describeRef(id *uuid.UUID, name string) string {
	switch {
	case id == nil:
		return "(none)"
	case name != "":
		return name
	default:
		return id.String()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

// Package route holds the `convoy route` command group.
package route

import (
	"github.com/spf13/cobra"
)

// Cmd is the route command group
var Cmd = &cobra.Command{
	Use:   "route",
	Short: "Manage daily routes",
	Long:  `Show, create, reorder and execute routes, and review absence flags.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(reorderCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(outcomeCmd)
	Cmd.AddCommand(cancelStopCmd)
	Cmd.AddCommand(assignDriverCmd)
	Cmd.AddCommand(assignVehicleCmd)
	Cmd.AddCommand(seriesCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(delaysCmd)
	Cmd.AddCommand(flagsCmd)
	Cmd.AddCommand(clearFlagCmd)
	Cmd.AddCommand(absenceCancelledCmd)
}

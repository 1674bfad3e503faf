package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/convoy/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to the configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := GetApp()
		if err != nil {
			return err
		}

		health := app.Health.Check(cmd.Context())
		out := cmd.OutOrStdout()
		if JSONOutput() {
			if err := PrintJSON(out, health); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "status: %s\n", health.Status)
			for _, name := range app.Health.Names() {
				check := health.Checks[name]
				fmt.Fprintf(out, "  %-18s %s %s\n", name, check.Status, check.Message)
			}
		}
		if health.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// Package fleet holds the `convoy fleet` commands that maintain the local
// driver and vehicle tables.
package fleet

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/internal/fleet/domain"
)

// Cmd is the fleet command group
var Cmd = &cobra.Command{
	Use:   "fleet",
	Short: "Maintain the local driver and vehicle directory",
	Long: `Add and list the drivers and vehicles routes can be assigned to.

These commands write the local tables. When FLEET_DIRECTORY_URL points at a
remote fleet service, assignments are validated there instead.`,
}

var (
	driverID    string
	driverPhone string
	inactive    bool
	vehicleID   string
	capacity    int
	wheelchair  bool
)

var addDriverCmd = &cobra.Command{
	Use:   "add-driver <name>",
	Short: "Add or update a driver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		id, err := idOrNew(driverID, "driver")
		if err != nil {
			return err
		}

		driver := domain.Driver{ID: id, Name: args[0], Phone: driverPhone, Active: !inactive}
		if err := app.FleetStore.SaveDriver(cmd.Context(), driver); err != nil {
			return err
		}
		if cli.JSONOutput() {
			return cli.PrintJSON(cmd.OutOrStdout(), driver)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Driver saved: %s (%s)\n", driver.Name, driver.ID)
		return nil
	},
}

var addVehicleCmd = &cobra.Command{
	Use:   "add-vehicle <registration>",
	Short: "Add or update a vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		id, err := idOrNew(vehicleID, "vehicle")
		if err != nil {
			return err
		}

		vehicle := domain.Vehicle{
			ID:                   id,
			Registration:         args[0],
			Capacity:             capacity,
			WheelchairAccessible: wheelchair,
			Active:               !inactive,
		}
		if err := app.FleetStore.SaveVehicle(cmd.Context(), vehicle); err != nil {
			return err
		}
		if cli.JSONOutput() {
			return cli.PrintJSON(cmd.OutOrStdout(), vehicle)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Vehicle saved: %s (%s)\n", vehicle.Registration, vehicle.ID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List drivers and vehicles",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.GetApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		drivers, err := app.FleetStore.ListDrivers(ctx)
		if err != nil {
			return err
		}
		vehicles, err := app.FleetStore.ListVehicles(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, map[string]any{"drivers": drivers, "vehicles": vehicles})
		}
		fmt.Fprintln(out, "Drivers")
		cli.Rule(out)
		for _, d := range drivers {
			fmt.Fprintf(out, "  %s  %-24s %s\n", d.ID, d.Name, activeLabel(d.Active))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Vehicles")
		cli.Rule(out)
		for _, v := range vehicles {
			access := ""
			if v.WheelchairAccessible {
				access = "wheelchair"
			}
			fmt.Fprintf(out, "  %s  %-10s seats %-3d %-10s %s\n", v.ID, v.Registration, v.Capacity, access, activeLabel(v.Active))
		}
		return nil
	},
}

func idOrNew(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	return cli.ParseID(kind, raw)
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func init() {
	Cmd.AddCommand(addDriverCmd)
	Cmd.AddCommand(addVehicleCmd)
	Cmd.AddCommand(listCmd)

	addDriverCmd.Flags().StringVar(&driverID, "id", "", "driver ID, generated when empty")
	addDriverCmd.Flags().StringVar(&driverPhone, "phone", "", "contact phone")
	addDriverCmd.Flags().BoolVar(&inactive, "inactive", false, "store the driver as inactive")

	addVehicleCmd.Flags().StringVar(&vehicleID, "id", "", "vehicle ID, generated when empty")
	addVehicleCmd.Flags().IntVar(&capacity, "capacity", 0, "seat count")
	addVehicleCmd.Flags().BoolVar(&wheelchair, "wheelchair", false, "vehicle is wheelchair accessible")
	addVehicleCmd.Flags().BoolVar(&inactive, "inactive", false, "store the vehicle as inactive")
}

package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// ReassignDriverCommand sets or clears (DriverID nil) the driver of a route.
type ReassignDriverCommand struct {
	RouteID         uuid.UUID
	DriverID        *uuid.UUID
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (ReassignDriverCommand) CommandName() string { return "reassign_driver" }

// ReassignDriverHandler validates the driver against the fleet directory
// before touching the route.
type ReassignDriverHandler struct {
	writer    *RouteWriter
	directory fleetDomain.Directory
	presenter *queries.Presenter
}

func NewReassignDriverHandler(writer *RouteWriter, directory fleetDomain.Directory, presenter *queries.Presenter) *ReassignDriverHandler {
	return &ReassignDriverHandler{writer: writer, directory: directory, presenter: presenter}
}

func (h *ReassignDriverHandler) Handle(ctx context.Context, cmd ReassignDriverCommand) (*queries.RouteDTO, error) {
	if cmd.DriverID != nil && *cmd.DriverID != uuid.Nil {
		if _, err := fleetDomain.RequireActiveDriver(ctx, h.directory, *cmd.DriverID); err != nil {
			return nil, fleetReferenceError(err)
		}
	}

	route, err := h.writer.Update(ctx, target{
		command:         cmd.CommandName(),
		routeID:         cmd.RouteID,
		actor:           cmd.Actor,
		expectedVersion: cmd.ExpectedVersion,
	}, func(_ context.Context, route *domain.Route, now time.Time) error {
		return route.AssignDriver(cmd.DriverID, now)
	})
	if err != nil {
		return nil, err
	}
	return h.presenter.Route(ctx, route), nil
}

// ReassignVehicleCommand sets or clears the vehicle of a route.
type ReassignVehicleCommand struct {
	RouteID         uuid.UUID
	VehicleID       *uuid.UUID
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (ReassignVehicleCommand) CommandName() string { return "reassign_vehicle" }

type ReassignVehicleHandler struct {
	writer    *RouteWriter
	directory fleetDomain.Directory
	presenter *queries.Presenter
}

func NewReassignVehicleHandler(writer *RouteWriter, directory fleetDomain.Directory, presenter *queries.Presenter) *ReassignVehicleHandler {
	return &ReassignVehicleHandler{writer: writer, directory: directory, presenter: presenter}
}

func (h *ReassignVehicleHandler) Handle(ctx context.Context, cmd ReassignVehicleCommand) (*queries.RouteDTO, error) {
	if cmd.VehicleID != nil && *cmd.VehicleID != uuid.Nil {
		if _, err := fleetDomain.RequireActiveVehicle(ctx, h.directory, *cmd.VehicleID); err != nil {
			return nil, fleetReferenceError(err)
		}
	}

	route, err := h.writer.Update(ctx, target{
		command:         cmd.CommandName(),
		routeID:         cmd.RouteID,
		actor:           cmd.Actor,
		expectedVersion: cmd.ExpectedVersion,
	}, func(_ context.Context, route *domain.Route, now time.Time) error {
		return route.AssignVehicle(cmd.VehicleID, now)
	})
	if err != nil {
		return nil, err
	}
	return h.presenter.Route(ctx, route), nil
}

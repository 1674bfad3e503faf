package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// CreateRouteCommand hands a planned route over from the scheduling process.
type CreateRouteCommand struct {
	RouteID        uuid.UUID
	Name           string
	ServiceDate    time.Time
	DriverID       *uuid.UUID
	VehicleID      *uuid.UUID
	EstimatedStart time.Time
	EstimatedEnd   time.Time
	Stops          []domain.StopSpec
	Actor          uuid.UUID
}

func (CreateRouteCommand) CommandName() string { return "create_route" }

// CreateRouteHandler handles CreateRouteCommand.
type CreateRouteHandler struct {
	writer    *RouteWriter
	directory fleetDomain.Directory
	presenter *queries.Presenter
}

func NewCreateRouteHandler(writer *RouteWriter, directory fleetDomain.Directory, presenter *queries.Presenter) *CreateRouteHandler {
	return &CreateRouteHandler{writer: writer, directory: directory, presenter: presenter}
}

func (h *CreateRouteHandler) Handle(ctx context.Context, cmd CreateRouteCommand) (*queries.RouteDTO, error) {
	if cmd.DriverID != nil && *cmd.DriverID != uuid.Nil {
		if _, err := fleetDomain.RequireActiveDriver(ctx, h.directory, *cmd.DriverID); err != nil {
			return nil, fleetReferenceError(err)
		}
	}
	if cmd.VehicleID != nil && *cmd.VehicleID != uuid.Nil {
		if _, err := fleetDomain.RequireActiveVehicle(ctx, h.directory, *cmd.VehicleID); err != nil {
			return nil, fleetReferenceError(err)
		}
	}

	route, err := domain.NewRoute(domain.RoutePlan{
		ID:             cmd.RouteID,
		Name:           cmd.Name,
		ServiceDate:    cmd.ServiceDate,
		DriverID:       cmd.DriverID,
		VehicleID:      cmd.VehicleID,
		EstimatedStart: cmd.EstimatedStart,
		EstimatedEnd:   cmd.EstimatedEnd,
		Stops:          cmd.Stops,
	}, h.writer.Now())
	if err != nil {
		return nil, err
	}
	if err := h.writer.Create(ctx, cmd.CommandName(), cmd.Actor, route); err != nil {
		return nil, err
	}
	return h.presenter.Route(ctx, route), nil
}

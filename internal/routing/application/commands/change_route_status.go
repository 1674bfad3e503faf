package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// ChangeRouteStatusCommand moves a route along its lifecycle.
type ChangeRouteStatusCommand struct {
	RouteID         uuid.UUID
	Status          domain.Status
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (ChangeRouteStatusCommand) CommandName() string { return "change_route_status" }

// ChangeRouteStatusHandler handles ChangeRouteStatusCommand.
type ChangeRouteStatusHandler struct {
	writer    *RouteWriter
	presenter *queries.Presenter
}

func NewChangeRouteStatusHandler(writer *RouteWriter, presenter *queries.Presenter) *ChangeRouteStatusHandler {
	return &ChangeRouteStatusHandler{writer: writer, presenter: presenter}
}

func (h *ChangeRouteStatusHandler) Handle(ctx context.Context, cmd ChangeRouteStatusCommand) (*queries.RouteDTO, error) {
	status, err := domain.ParseStatus(string(cmd.Status))
	if err != nil {
		return nil, err
	}
	route, err := h.writer.Update(ctx, target{
		command:         cmd.CommandName(),
		routeID:         cmd.RouteID,
		actor:           cmd.Actor,
		expectedVersion: cmd.ExpectedVersion,
	}, func(_ context.Context, route *domain.Route, now time.Time) error {
		return route.ChangeStatus(status, now)
	})
	if err != nil {
		return nil, err
	}
	return h.presenter.Route(ctx, route), nil
}

package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// ReorderStopsCommand replaces the stop order of a route in one step.
type ReorderStopsCommand struct {
	RouteID         uuid.UUID
	Order           []domain.StopPosition
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (ReorderStopsCommand) CommandName() string { return "reorder_stops" }

// ReorderStopsHandler handles ReorderStopsCommand.
type ReorderStopsHandler struct {
	writer    *RouteWriter
	presenter *queries.Presenter
}

func NewReorderStopsHandler(writer *RouteWriter, presenter *queries.Presenter) *ReorderStopsHandler {
	return &ReorderStopsHandler{writer: writer, presenter: presenter}
}

func (h *ReorderStopsHandler) Handle(ctx context.Context, cmd ReorderStopsCommand) (*queries.RouteDTO, error) {
	route, err := h.writer.Update(ctx, target{
		command:         cmd.CommandName(),
		routeID:         cmd.RouteID,
		actor:           cmd.Actor,
		expectedVersion: cmd.ExpectedVersion,
	}, func(_ context.Context, route *domain.Route, now time.Time) error {
		return route.ReorderStops(cmd.Order, now)
	})
	if err != nil {
		return nil, err
	}
	return h.presenter.Route(ctx, route), nil
}

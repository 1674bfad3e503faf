package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// DeleteRouteCommand removes a route with its stops and flags.
type DeleteRouteCommand struct {
	RouteID         uuid.UUID
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (DeleteRouteCommand) CommandName() string { return "delete_route" }

type DeleteRouteHandler struct {
	writer *RouteWriter
}

func NewDeleteRouteHandler(writer *RouteWriter) *DeleteRouteHandler {
	return &DeleteRouteHandler{writer: writer}
}

func (h *DeleteRouteHandler) Handle(ctx context.Context, cmd DeleteRouteCommand) error {
	_, err := h.writer.Remove(ctx, target{
		command:         cmd.CommandName(),
		routeID:         cmd.RouteID,
		actor:           cmd.Actor,
		expectedVersion: cmd.ExpectedVersion,
	}, func(_ context.Context, route *domain.Route, now time.Time) error {
		return route.MarkDeleted(now)
	})
	return err
}

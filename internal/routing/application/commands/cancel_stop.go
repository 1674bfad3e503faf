package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// CancelStopCommand cancels a pending stop. The route status never changes.
type CancelStopCommand struct {
	StopID          uuid.UUID
	Reason          string
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (CancelStopCommand) CommandName() string { return "cancel_stop" }

type CancelStopHandler struct {
	writer    *RouteWriter
	presenter *queries.Presenter
}

func NewCancelStopHandler(writer *RouteWriter, presenter *queries.Presenter) *CancelStopHandler {
	return &CancelStopHandler{writer: writer, presenter: presenter}
}

func (h *CancelStopHandler) Handle(ctx context.Context, cmd CancelStopCommand) (*queries.StopDTO, error) {
	routeID, err := h.writer.routeForStop(ctx, cmd.StopID)
	if err != nil {
		return nil, err
	}

	route, err := h.writer.Update(ctx, target{
		command:         cmd.CommandName(),
		routeID:         routeID,
		actor:           cmd.Actor,
		expectedVersion: cmd.ExpectedVersion,
	}, func(_ context.Context, route *domain.Route, now time.Time) error {
		_, err := route.CancelStop(cmd.StopID, cmd.Reason, cmd.Actor, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	stop, err := route.Stop(cmd.StopID)
	if err != nil {
		return nil, err
	}
	return h.presenter.Stop(route, stop), nil
}

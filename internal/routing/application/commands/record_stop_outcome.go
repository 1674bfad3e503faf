package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// RecordStopOutcomeCommand records the write-once outcome of a stop.
type RecordStopOutcomeCommand struct {
	StopID          uuid.UUID
	Outcome         domain.Outcome
	Notes           string
	ActualTime      *time.Time
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (RecordStopOutcomeCommand) CommandName() string { return "record_stop_outcome" }

// RecordStopOutcomeHandler handles RecordStopOutcomeCommand. With
// auto-completion enabled, the outcome that makes every stop terminal also
// completes the route in the same transaction.
type RecordStopOutcomeHandler struct {
	writer    *RouteWriter
	presenter *queries.Presenter
}

func NewRecordStopOutcomeHandler(writer *RouteWriter, presenter *queries.Presenter) *RecordStopOutcomeHandler {
	return &RecordStopOutcomeHandler{writer: writer, presenter: presenter}
}

func (h *RecordStopOutcomeHandler) Handle(ctx context.Context, cmd RecordStopOutcomeCommand) (*queries.StopDTO, error) {
	outcome, err := domain.ParseOutcome(string(cmd.Outcome))
	if err != nil {
		return nil, err
	}
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
		if _, err := route.RecordStopOutcome(cmd.StopID, outcome, cmd.Actor, cmd.Notes, cmd.ActualTime, now); err != nil {
			return err
		}
		if h.writer.Options().AutoCompleteRoutes && route.Status() == domain.StatusInProgress && route.AllStopsTerminal() {
			return route.ChangeStatus(domain.StatusCompleted, now)
		}
		return nil
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

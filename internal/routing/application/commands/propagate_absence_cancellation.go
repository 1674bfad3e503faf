package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

// PropagateAbsenceCancellationCommand raises review flags on the stops an
// absence had cancelled. Stops are never reinstated automatically.
type PropagateAbsenceCancellationCommand struct {
	AbsenceID     uuid.UUID
	ChildID       uuid.UUID
	Reason        string
	AffectedStops []domain.StopRef
	Actor         uuid.UUID
}

func (PropagateAbsenceCancellationCommand) CommandName() string {
	return "propagate_absence_cancellation"
}

// FromAbsenceCancelled builds the command from the integration event.
func FromAbsenceCancelled(evt domain.AbsenceCancelled) PropagateAbsenceCancellationCommand {
	return PropagateAbsenceCancellationCommand{
		AbsenceID:     evt.AbsenceID,
		ChildID:       evt.ChildID,
		Reason:        evt.Reason,
		AffectedStops: evt.AffectedRouteStops,
		Actor:         evt.CancelledBy,
	}
}

// PropagationResult sorts every referenced stop into exactly one bucket.
type PropagationResult struct {
	Flagged        []domain.StopRef `json:"flagged"`
	AlreadyFlagged []domain.StopRef `json:"already_flagged"`
	Skipped        []domain.StopRef `json:"skipped"`
	Missing        []domain.StopRef `json:"missing"`
}

// Total is the number of stop references accounted for.
func (r PropagationResult) Total() int {
	return len(r.Flagged) + len(r.AlreadyFlagged) + len(r.Skipped) + len(r.Missing)
}

type PropagateAbsenceCancellationHandler struct {
	writer *RouteWriter
}

func NewPropagateAbsenceCancellationHandler(writer *RouteWriter) *PropagateAbsenceCancellationHandler {
	return &PropagateAbsenceCancellationHandler{writer: writer}
}

// Handle processes one route at a time so a conflict on one route does not
// roll back flags already raised on another. The result is returned even when
// some routes failed; the error joins those failures.
func (h *PropagateAbsenceCancellationHandler) Handle(ctx context.Context, cmd PropagateAbsenceCancellationCommand) (*PropagationResult, error) {
	if cmd.AbsenceID == uuid.Nil {
		return nil, fmt.Errorf("%w: absence id is required", domain.ErrValidation)
	}

	result := &PropagationResult{}
	order, grouped := domain.GroupByRoute(cmd.AffectedStops)

	var errs []error
	for _, routeID := range order {
		stopIDs := grouped[routeID]
		outcomes := make(map[uuid.UUID]domain.FlagOutcome, len(stopIDs))

		_, err := h.writer.Update(ctx, target{
			command: cmd.CommandName(),
			routeID: routeID,
			actor:   cmd.Actor,
		}, func(_ context.Context, route *domain.Route, now time.Time) error {
			clear(outcomes)
			for _, stopID := range stopIDs {
				outcome, err := route.FlagStopForReview(stopID, cmd.AbsenceID, cmd.Reason, now)
				if errors.Is(err, domain.ErrStopNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				outcomes[stopID] = outcome
			}
			return nil
		})
		switch {
		case errors.Is(err, domain.ErrRouteNotFound):
			for _, stopID := range stopIDs {
				result.Missing = append(result.Missing, domain.StopRef{RouteID: routeID, StopID: stopID})
			}
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("route %s: %w", routeID, err))
			continue
		}

		for _, stopID := range stopIDs {
			ref := domain.StopRef{RouteID: routeID, StopID: stopID}
			switch outcomes[stopID] {
			case domain.FlagCreated:
				result.Flagged = append(result.Flagged, ref)
			case domain.FlagAlreadyPresent:
				result.AlreadyFlagged = append(result.AlreadyFlagged, ref)
			case domain.FlagSkippedExecuted:
				result.Skipped = append(result.Skipped, ref)
			default:
				result.Missing = append(result.Missing, ref)
			}
		}
	}

	if n := len(result.Flagged); n > 0 {
		h.writer.metrics.Counter(observability.MetricReviewFlagsRaised, int64(n))
	}
	h.writer.logger.InfoContext(ctx, "absence cancellation propagated",
		"absence_id", cmd.AbsenceID,
		"flagged", len(result.Flagged),
		"already_flagged", len(result.AlreadyFlagged),
		"skipped", len(result.Skipped),
		"missing", len(result.Missing),
	)
	return result, errors.Join(errs...)
}

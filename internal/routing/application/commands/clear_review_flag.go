package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// ClearReviewFlagCommand resolves a review flag after the operator decided
// whether the stop needs reinstating.
type ClearReviewFlagCommand struct {
	RouteID         uuid.UUID
	FlagID          uuid.UUID
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (ClearReviewFlagCommand) CommandName() string { return "clear_review_flag" }

type ClearReviewFlagHandler struct {
	writer *RouteWriter
}

func NewClearReviewFlagHandler(writer *RouteWriter) *ClearReviewFlagHandler {
	return &ClearReviewFlagHandler{writer: writer}
}

func (h *ClearReviewFlagHandler) Handle(ctx context.Context, cmd ClearReviewFlagCommand) (*queries.ReviewFlagDTO, error) {
	route, err := h.writer.Update(ctx, target{
		command:         cmd.CommandName(),
		routeID:         cmd.RouteID,
		actor:           cmd.Actor,
		expectedVersion: cmd.ExpectedVersion,
	}, func(_ context.Context, route *domain.Route, now time.Time) error {
		return route.ClearReviewFlag(cmd.FlagID, cmd.Actor, now)
	})
	if err != nil {
		return nil, err
	}

	for _, f := range route.ReviewFlags() {
		if f.ID() == cmd.FlagID {
			dto := queries.NewReviewFlagDTO(f)
			return &dto, nil
		}
	}
	return nil, domain.ErrFlagNotFound
}

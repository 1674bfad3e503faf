package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// previewOccurrences is how many upcoming dates CreateSeries returns.
const previewOccurrences = 5

// CreateSeriesCommand turns a planned route into the template of a recurrence.
type CreateSeriesCommand struct {
	RouteID         uuid.UUID
	Pattern         string
	Actor           uuid.UUID
	ExpectedVersion *int
}

func (CreateSeriesCommand) CommandName() string { return "create_series" }

// SeriesResult describes the created series.
type SeriesResult struct {
	SeriesID        uuid.UUID   `json:"series_id"`
	RouteID         uuid.UUID   `json:"route_id"`
	Pattern         string      `json:"pattern"`
	NextOccurrences []time.Time `json:"next_occurrences"`
}

// CreateSeriesHandler handles CreateSeriesCommand.
type CreateSeriesHandler struct {
	writer *RouteWriter
	series domain.SeriesRepository
}

func NewCreateSeriesHandler(writer *RouteWriter, series domain.SeriesRepository) *CreateSeriesHandler {
	return &CreateSeriesHandler{writer: writer, series: series}
}

func (h *CreateSeriesHandler) Handle(ctx context.Context, cmd CreateSeriesCommand) (*SeriesResult, error) {
	var created *domain.Series
	route, err := h.writer.Update(ctx, target{
		command:         cmd.CommandName(),
		routeID:         cmd.RouteID,
		actor:           cmd.Actor,
		expectedVersion: cmd.ExpectedVersion,
	}, func(ctx context.Context, route *domain.Route, now time.Time) error {
		if err := domain.Guard(domain.OpCreateSeries, route.Status()); err != nil {
			return err
		}
		series, err := domain.NewSeries(route, cmd.Pattern, cmd.Actor, now)
		if err != nil {
			return err
		}
		if err := route.AttachSeries(series, now); err != nil {
			return err
		}
		// The series row must exist before the route references it.
		if err := h.series.Save(ctx, series); err != nil {
			return err
		}
		created = series
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SeriesResult{
		SeriesID:        created.ID(),
		RouteID:         route.ID(),
		Pattern:         created.Pattern(),
		NextOccurrences: created.NextOccurrences(route.EstimatedStart(), previewOccurrences),
	}, nil
}

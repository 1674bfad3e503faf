package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// GetRouteQuery asks for one route with stops, delays, flags and capabilities.
type GetRouteQuery struct {
	RouteID uuid.UUID
}

func (GetRouteQuery) QueryName() string { return "get_route" }

// GetRouteHandler handles GetRouteQuery.
type GetRouteHandler struct {
	routes    domain.RouteRepository
	presenter *Presenter
}

func NewGetRouteHandler(routes domain.RouteRepository, presenter *Presenter) *GetRouteHandler {
	return &GetRouteHandler{routes: routes, presenter: presenter}
}

func (h *GetRouteHandler) Handle(ctx context.Context, q GetRouteQuery) (*RouteDTO, error) {
	route, err := h.routes.FindByID(ctx, q.RouteID)
	if err != nil {
		return nil, err
	}
	return h.presenter.Route(ctx, route), nil
}

// GetDelaySummaryQuery asks for the delay summary of a route. At defaults to now.
type GetDelaySummaryQuery struct {
	RouteID uuid.UUID
	At      *time.Time
}

func (GetDelaySummaryQuery) QueryName() string { return "get_delay_summary" }

// GetDelaySummaryHandler computes delays on read; nothing is stored.
type GetDelaySummaryHandler struct {
	routes    domain.RouteRepository
	presenter *Presenter
}

func NewGetDelaySummaryHandler(routes domain.RouteRepository, presenter *Presenter) *GetDelaySummaryHandler {
	return &GetDelaySummaryHandler{routes: routes, presenter: presenter}
}

func (h *GetDelaySummaryHandler) Handle(ctx context.Context, q GetDelaySummaryQuery) (domain.DelaySummary, error) {
	route, err := h.routes.FindByID(ctx, q.RouteID)
	if err != nil {
		return domain.DelaySummary{}, err
	}
	at := h.presenter.Now()
	if q.At != nil {
		at = *q.At
	}
	return domain.SummarizeDelays(route.Stops(), at, h.presenter.Threshold()), nil
}

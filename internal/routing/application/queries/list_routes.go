package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	sharedApplication "github.com/felixgeelhaar/convoy/internal/shared/application"
)

// ListRoutesByDateQuery lists the routes of one service day.
type ListRoutesByDateQuery struct {
	Date time.Time
}

func (ListRoutesByDateQuery) QueryName() string { return "list_routes_by_date" }

type ListRoutesByDateHandler struct {
	routes    domain.RouteRepository
	presenter *Presenter
}

func NewListRoutesByDateHandler(routes domain.RouteRepository, presenter *Presenter) *ListRoutesByDateHandler {
	return &ListRoutesByDateHandler{routes: routes, presenter: presenter}
}

func (h *ListRoutesByDateHandler) Handle(ctx context.Context, q ListRoutesByDateQuery) ([]RouteSummaryDTO, error) {
	routes, err := h.routes.FindByDate(ctx, q.Date)
	if err != nil {
		return nil, err
	}
	rows := make([]RouteSummaryDTO, 0, len(routes))
	for _, r := range routes {
		rows = append(rows, h.presenter.Summary(r))
	}
	return rows, nil
}

// ListReviewFlagsQuery lists the review flags of a route, open ones only
// unless IncludeCleared is set.
type ListReviewFlagsQuery struct {
	RouteID        uuid.UUID
	IncludeCleared bool
}

func (ListReviewFlagsQuery) QueryName() string { return "list_review_flags" }

type ListReviewFlagsHandler struct {
	routes domain.RouteRepository
}

func NewListReviewFlagsHandler(routes domain.RouteRepository) *ListReviewFlagsHandler {
	return &ListReviewFlagsHandler{routes: routes}
}

func (h *ListReviewFlagsHandler) Handle(ctx context.Context, q ListReviewFlagsQuery) ([]ReviewFlagDTO, error) {
	route, err := h.routes.FindByID(ctx, q.RouteID)
	if err != nil {
		return nil, err
	}
	flags := route.OpenReviewFlags()
	if q.IncludeCleared {
		flags = route.ReviewFlags()
	}
	out := make([]ReviewFlagDTO, 0, len(flags))
	for _, f := range flags {
		out = append(out, NewReviewFlagDTO(f))
	}
	return out, nil
}

var (
	_ sharedApplication.QueryHandler[GetRouteQuery, *RouteDTO]                  = (*GetRouteHandler)(nil)
	_ sharedApplication.QueryHandler[GetDelaySummaryQuery, domain.DelaySummary] = (*GetDelaySummaryHandler)(nil)
	_ sharedApplication.QueryHandler[ListRoutesByDateQuery, []RouteSummaryDTO]  = (*ListRoutesByDateHandler)(nil)
	_ sharedApplication.QueryHandler[ListReviewFlagsQuery, []ReviewFlagDTO]     = (*ListReviewFlagsHandler)(nil)
)

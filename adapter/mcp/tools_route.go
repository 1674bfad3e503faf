package mcp

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

type routeIDInput struct {
	RouteID string `json:"route_id" jsonschema:"required"`
}

type routeListInput struct {
	Date string `json:"date,omitempty"`
}

type routeDelaysInput struct {
	RouteID string `json:"route_id" jsonschema:"required"`
	At      string `json:"at,omitempty"`
}

type routeReorderInput struct {
	RouteID         string   `json:"route_id" jsonschema:"required"`
	StopIDs         []string `json:"stop_ids" jsonschema:"required"`
	ExpectedVersion int      `json:"expected_version,omitempty"`
}

type routeStatusInput struct {
	RouteID         string `json:"route_id" jsonschema:"required"`
	Status          string `json:"status" jsonschema:"required"`
	ExpectedVersion int    `json:"expected_version,omitempty"`
}

type routeFlagsInput struct {
	RouteID        string `json:"route_id" jsonschema:"required"`
	IncludeCleared bool   `json:"include_cleared,omitempty"`
}

type routeClearFlagInput struct {
	RouteID string `json:"route_id" jsonschema:"required"`
	FlagID  string `json:"flag_id" jsonschema:"required"`
}

func registerHealthTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("cli.health").
		Description("Report the health of the database, lock store, broker and fleet directory").
		Handler(func(ctx context.Context, _ struct{}) (observability.OverallHealth, error) {
			if app.Container == nil {
				return observability.OverallHealth{}, errNoDatabase
			}
			return app.Health.Check(ctx), nil
		})
	return nil
}

func registerRouteTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("route.show").
		Description("Show a route with its stops in order, delays, review flags and allowed operations").
		Handler(func(ctx context.Context, input routeIDInput) (*queries.RouteDTO, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			routeID, err := parseUUID(input.RouteID)
			if err != nil {
				return nil, err
			}
			return app.GetRouteHandler.Handle(ctx, queries.GetRouteQuery{RouteID: routeID})
		})

	srv.Tool("route.list").
		Description("List the routes of a service date (YYYY-MM-DD, default today)").
		Handler(func(ctx context.Context, input routeListInput) ([]queries.RouteSummaryDTO, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			date, err := parseDate(input.Date, time.Now())
			if err != nil {
				return nil, err
			}
			return app.ListRoutesByDateHandler.Handle(ctx, queries.ListRoutesByDateQuery{Date: date})
		})

	srv.Tool("route.delays").
		Description("Summarize how late a route is running").
		Handler(func(ctx context.Context, input routeDelaysInput) (queries.DelaySummaryDTO, error) {
			app, err := ready(app)
			if err != nil {
				return queries.DelaySummaryDTO{}, err
			}
			routeID, err := parseUUID(input.RouteID)
			if err != nil {
				return queries.DelaySummaryDTO{}, err
			}
			at, err := parseOptionalTimestamp(input.At)
			if err != nil {
				return queries.DelaySummaryDTO{}, err
			}
			summary, err := app.GetDelaySummaryHandler.Handle(ctx, queries.GetDelaySummaryQuery{RouteID: routeID, At: at})
			if err != nil {
				return queries.DelaySummaryDTO{}, err
			}
			return queries.NewDelaySummaryDTO(summary), nil
		})

	srv.Tool("route.reorder").
		Description("Set the order of every stop on a planned route; stop_ids lists all stops in their new order").
		Handler(func(ctx context.Context, input routeReorderInput) (*queries.RouteDTO, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			actor, err := app.Actor()
			if err != nil {
				return nil, err
			}
			routeID, err := parseUUID(input.RouteID)
			if err != nil {
				return nil, err
			}
			order := make([]domain.StopPosition, len(input.StopIDs))
			for i, raw := range input.StopIDs {
				stopID, err := parseUUID(raw)
				if err != nil {
					return nil, err
				}
				order[i] = domain.StopPosition{StopID: stopID, Position: i + 1}
			}
			return app.ReorderStopsHandler.Handle(ctx, commands.ReorderStopsCommand{
				RouteID:         routeID,
				Order:           order,
				Actor:           actor,
				ExpectedVersion: expectedVersion(input.ExpectedVersion),
			})
		})

	srv.Tool("route.status").
		Description("Move a route to PLANNED, IN_PROGRESS, COMPLETED, CANCELLED or DRIVER_MISSING").
		Handler(func(ctx context.Context, input routeStatusInput) (*queries.RouteDTO, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			actor, err := app.Actor()
			if err != nil {
				return nil, err
			}
			routeID, err := parseUUID(input.RouteID)
			if err != nil {
				return nil, err
			}
			status, err := domain.ParseStatus(input.Status)
			if err != nil {
				return nil, err
			}
			return app.ChangeRouteStatusHandler.Handle(ctx, commands.ChangeRouteStatusCommand{
				RouteID:         routeID,
				Status:          status,
				Actor:           actor,
				ExpectedVersion: expectedVersion(input.ExpectedVersion),
			})
		})

	srv.Tool("route.flags").
		Description("List stops flagged for review after an absence was withdrawn").
		Handler(func(ctx context.Context, input routeFlagsInput) ([]queries.ReviewFlagDTO, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			routeID, err := parseUUID(input.RouteID)
			if err != nil {
				return nil, err
			}
			return app.ListReviewFlagsHandler.Handle(ctx, queries.ListReviewFlagsQuery{
				RouteID:        routeID,
				IncludeCleared: input.IncludeCleared,
			})
		})

	srv.Tool("route.clear_flag").
		Description("Mark a review flag as handled").
		Handler(func(ctx context.Context, input routeClearFlagInput) (*queries.ReviewFlagDTO, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			actor, err := app.Actor()
			if err != nil {
				return nil, err
			}
			routeID, err := parseUUID(input.RouteID)
			if err != nil {
				return nil, err
			}
			flagID, err := parseUUID(input.FlagID)
			if err != nil {
				return nil, err
			}
			return app.ClearReviewFlagHandler.Handle(ctx, commands.ClearReviewFlagCommand{
				RouteID: routeID,
				FlagID:  flagID,
				Actor:   actor,
			})
		})

	return nil
}

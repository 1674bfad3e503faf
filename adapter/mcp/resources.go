package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
)

// RegisterResources registers MCP resources that expose the day's routes.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	dayResource := func(uri, name, description string, offset int) {
		srv.Resource(uri).
			Name(name).
			Description(description).
			MimeType("application/json").
			Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
				app, err := ready(app)
				if err != nil {
					return nil, err
				}
				routes, err := app.ListRoutesByDateHandler.Handle(ctx, queries.ListRoutesByDateQuery{
					Date: time.Now().AddDate(0, 0, offset),
				})
				if err != nil {
					return nil, err
				}
				return jsonContent(uri, routes)
			})
	}

	dayResource("convoy://routes/today", "Today's Routes", "Every route scheduled for today with delay and flag counts", 0)
	dayResource("convoy://routes/tomorrow", "Tomorrow's Routes", "Every route scheduled for tomorrow", 1)

	srv.Resource("convoy://system/health").
		Name("Health").
		Description("Health of the database, lock store, broker and fleet directory").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			return jsonContent(uri, app.Health.Check(ctx))
		})

	return nil
}

func jsonContent(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}

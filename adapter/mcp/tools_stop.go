package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/convoy/internal/routing/application/commands"
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

type stopOutcomeInput struct {
	StopID          string `json:"stop_id" jsonschema:"required"`
	Outcome         string `json:"outcome" jsonschema:"required"`
	Notes           string `json:"notes,omitempty"`
	ActualTime      string `json:"actual_time,omitempty"`
	ExpectedVersion int    `json:"expected_version,omitempty"`
}

type stopCancelInput struct {
	StopID          string `json:"stop_id" jsonschema:"required"`
	Reason          string `json:"reason" jsonschema:"required"`
	ExpectedVersion int    `json:"expected_version,omitempty"`
}

func registerStopTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("stop.outcome").
		Description("Record COMPLETED, NO_SHOW or REFUSED for a stop on an in-progress route").
		Handler(func(ctx context.Context, input stopOutcomeInput) (*queries.StopDTO, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			actor, err := app.Actor()
			if err != nil {
				return nil, err
			}
			stopID, err := parseUUID(input.StopID)
			if err != nil {
				return nil, err
			}
			outcome, err := domain.ParseOutcome(input.Outcome)
			if err != nil {
				return nil, err
			}
			actual, err := parseOptionalTimestamp(input.ActualTime)
			if err != nil {
				return nil, err
			}
			return app.RecordStopOutcomeHandler.Handle(ctx, commands.RecordStopOutcomeCommand{
				StopID:          stopID,
				Outcome:         outcome,
				Notes:           input.Notes,
				ActualTime:      actual,
				Actor:           actor,
				ExpectedVersion: expectedVersion(input.ExpectedVersion),
			})
		})

	srv.Tool("stop.cancel").
		Description("Cancel a single stop with a reason").
		Handler(func(ctx context.Context, input stopCancelInput) (*queries.StopDTO, error) {
			app, err := ready(app)
			if err != nil {
				return nil, err
			}
			actor, err := app.Actor()
			if err != nil {
				return nil, err
			}
			stopID, err := parseUUID(input.StopID)
			if err != nil {
				return nil, err
			}
			return app.CancelStopHandler.Handle(ctx, commands.CancelStopCommand{
				StopID:          stopID,
				Reason:          input.Reason,
				Actor:           actor,
				ExpectedVersion: expectedVersion(input.ExpectedVersion),
			})
		})

	return nil
}

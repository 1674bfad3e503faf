package commands

import (
	"github.com/felixgeelhaar/convoy/internal/routing/application/queries"
	sharedApplication "github.com/felixgeelhaar/convoy/internal/shared/application"
)

var (
	_ sharedApplication.CommandHandler[CreateRouteCommand, *queries.RouteDTO]                   = (*CreateRouteHandler)(nil)
	_ sharedApplication.CommandHandler[ReorderStopsCommand, *queries.RouteDTO]                  = (*ReorderStopsHandler)(nil)
	_ sharedApplication.CommandHandler[ChangeRouteStatusCommand, *queries.RouteDTO]             = (*ChangeRouteStatusHandler)(nil)
	_ sharedApplication.CommandHandler[ReassignDriverCommand, *queries.RouteDTO]                = (*ReassignDriverHandler)(nil)
	_ sharedApplication.CommandHandler[ReassignVehicleCommand, *queries.RouteDTO]               = (*ReassignVehicleHandler)(nil)
	_ sharedApplication.CommandHandler[RecordStopOutcomeCommand, *queries.StopDTO]              = (*RecordStopOutcomeHandler)(nil)
	_ sharedApplication.CommandHandler[CancelStopCommand, *queries.StopDTO]                     = (*CancelStopHandler)(nil)
	_ sharedApplication.CommandHandler[CreateSeriesCommand, *SeriesResult]                      = (*CreateSeriesHandler)(nil)
	_ sharedApplication.CommandHandler[ClearReviewFlagCommand, *queries.ReviewFlagDTO]          = (*ClearReviewFlagHandler)(nil)
	_ sharedApplication.CommandHandler[PropagateAbsenceCancellationCommand, *PropagationResult] = (*PropagateAbsenceCancellationHandler)(nil)
)

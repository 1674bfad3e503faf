package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/convoy/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "Route"

	RoutingKeyRouteCreated      = "routing.route.created"
	RoutingKeyRouteDeleted      = "routing.route.deleted"
	RoutingKeyStopsReordered    = "routing.route.stops_reordered"
	RoutingKeyStatusChanged     = "routing.route.status_changed"
	RoutingKeyDriverReassigned  = "routing.route.driver_reassigned"
	RoutingKeyVehicleReassigned = "routing.route.vehicle_reassigned"
	RoutingKeySeriesCreated     = "routing.route.series_created"
	RoutingKeyStopExecuted      = "routing.stop.executed"
	RoutingKeyStopCancelled     = "routing.stop.cancelled"
	RoutingKeyStopFlagged       = "routing.stop.flagged_for_review"
	RoutingKeyFlagCleared       = "routing.stop.review_flag_cleared"
)

// RouteCreated is emitted when the scheduling process hands over a new route.
type RouteCreated struct {
	sharedDomain.BaseEvent
	Name        string     `json:"name"`
	ServiceDate time.Time  `json:"service_date"`
	DriverID    *uuid.UUID `json:"driver_id,omitempty"`
	VehicleID   *uuid.UUID `json:"vehicle_id,omitempty"`
	Status      Status     `json:"status"`
	StopCount   int        `json:"stop_count"`
}

func NewRouteCreated(r *Route, at time.Time) *RouteCreated {
	return &RouteCreated{
		BaseEvent:   sharedDomain.NewBaseEventAt(r.ID(), AggregateType, RoutingKeyRouteCreated, at),
		Name:        r.name,
		ServiceDate: r.serviceDate,
		DriverID:    r.driverID,
		VehicleID:   r.vehicleID,
		Status:      r.status,
		StopCount:   len(r.stops),
	}
}

// RouteDeleted is emitted before a route and its stops are removed.
type RouteDeleted struct {
	sharedDomain.BaseEvent
	Status   Status      `json:"status"`
	StopIDs  []uuid.UUID `json:"stop_ids"`
	SeriesID *uuid.UUID  `json:"series_id,omitempty"`
}

func NewRouteDeleted(r *Route, at time.Time) *RouteDeleted {
	ids := make([]uuid.UUID, len(r.stops))
	for i, s := range r.stops {
		ids[i] = s.id
	}
	return &RouteDeleted{
		BaseEvent: sharedDomain.NewBaseEventAt(r.ID(), AggregateType, RoutingKeyRouteDeleted, at),
		Status:    r.status,
		StopIDs:   ids,
		SeriesID:  r.seriesID,
	}
}

// StopsReordered carries the full new order so consumers never see a partial one.
type StopsReordered struct {
	sharedDomain.BaseEvent
	Order []uuid.UUID `json:"order"`
}

func NewStopsReordered(r *Route, at time.Time) *StopsReordered {
	order := make([]uuid.UUID, len(r.stops))
	for i, s := range r.stops {
		order[i] = s.id
	}
	return &StopsReordered{
		BaseEvent: sharedDomain.NewBaseEventAt(r.ID(), AggregateType, RoutingKeyStopsReordered, at),
		Order:     order,
	}
}

type RouteStatusChanged struct {
	sharedDomain.BaseEvent
	From Status `json:"from"`
	To   Status `json:"to"`
}

func NewRouteStatusChanged(routeID uuid.UUID, from, to Status, at time.Time) *RouteStatusChanged {
	return &RouteStatusChanged{
		BaseEvent: sharedDomain.NewBaseEventAt(routeID, AggregateType, RoutingKeyStatusChanged, at),
		From:      from,
		To:        to,
	}
}

type DriverReassigned struct {
	sharedDomain.BaseEvent
	PreviousDriverID *uuid.UUID `json:"previous_driver_id,omitempty"`
	DriverID         *uuid.UUID `json:"driver_id,omitempty"`
}

func NewDriverReassigned(routeID uuid.UUID, previous, current *uuid.UUID, at time.Time) *DriverReassigned {
	return &DriverReassigned{
		BaseEvent:        sharedDomain.NewBaseEventAt(routeID, AggregateType, RoutingKeyDriverReassigned, at),
		PreviousDriverID: previous,
		DriverID:         current,
	}
}

type VehicleReassigned struct {
	sharedDomain.BaseEvent
	PreviousVehicleID *uuid.UUID `json:"previous_vehicle_id,omitempty"`
	VehicleID         *uuid.UUID `json:"vehicle_id,omitempty"`
}

func NewVehicleReassigned(routeID uuid.UUID, previous, current *uuid.UUID, at time.Time) *VehicleReassigned {
	return &VehicleReassigned{
		BaseEvent:         sharedDomain.NewBaseEventAt(routeID, AggregateType, RoutingKeyVehicleReassigned, at),
		PreviousVehicleID: previous,
		VehicleID:         current,
	}
}

type StopExecuted struct {
	sharedDomain.BaseEvent
	StopID     uuid.UUID  `json:"stop_id"`
	ChildID    uuid.UUID  `json:"child_id"`
	StopType   StopType   `json:"stop_type"`
	Outcome    Outcome    `json:"outcome"`
	Actor      uuid.UUID  `json:"actor"`
	ActualTime *time.Time `json:"actual_time,omitempty"`
}

func NewStopExecuted(routeID uuid.UUID, s *Stop) *StopExecuted {
	return &StopExecuted{
		BaseEvent:  sharedDomain.NewBaseEventAt(routeID, AggregateType, RoutingKeyStopExecuted, s.execution.At),
		StopID:     s.id,
		ChildID:    s.childID,
		StopType:   s.stopType,
		Outcome:    s.execution.Outcome,
		Actor:      s.execution.Actor,
		ActualTime: s.actualTime,
	}
}

type StopCancelled struct {
	sharedDomain.BaseEvent
	StopID  uuid.UUID `json:"stop_id"`
	ChildID uuid.UUID `json:"child_id"`
	Reason  string    `json:"reason"`
	Actor   uuid.UUID `json:"actor"`
}

func NewStopCancelled(routeID uuid.UUID, s *Stop) *StopCancelled {
	return &StopCancelled{
		BaseEvent: sharedDomain.NewBaseEventAt(routeID, AggregateType, RoutingKeyStopCancelled, s.cancellation.At),
		StopID:    s.id,
		ChildID:   s.childID,
		Reason:    s.cancellation.Reason,
		Actor:     s.cancellation.Actor,
	}
}

// StopFlaggedForReview tells the review surface that an operator decision is pending.
type StopFlaggedForReview struct {
	sharedDomain.BaseEvent
	FlagID    uuid.UUID `json:"flag_id"`
	StopID    uuid.UUID `json:"stop_id"`
	AbsenceID uuid.UUID `json:"absence_id"`
	StopState StopState `json:"stop_state"`
	Reason    string    `json:"reason"`
}

func NewStopFlaggedForReview(f *ReviewFlag, state StopState) *StopFlaggedForReview {
	return &StopFlaggedForReview{
		BaseEvent: sharedDomain.NewBaseEventAt(f.routeID, AggregateType, RoutingKeyStopFlagged, f.createdAt),
		FlagID:    f.id,
		StopID:    f.stopID,
		AbsenceID: f.absenceID,
		StopState: state,
		Reason:    f.reason,
	}
}

type ReviewFlagCleared struct {
	sharedDomain.BaseEvent
	FlagID    uuid.UUID `json:"flag_id"`
	StopID    uuid.UUID `json:"stop_id"`
	ClearedBy uuid.UUID `json:"cleared_by"`
}

func NewReviewFlagCleared(f *ReviewFlag) *ReviewFlagCleared {
	return &ReviewFlagCleared{
		BaseEvent: sharedDomain.NewBaseEventAt(f.routeID, AggregateType, RoutingKeyFlagCleared, *f.clearedAt),
		FlagID:    f.id,
		StopID:    f.stopID,
		ClearedBy: *f.clearedBy,
	}
}

type SeriesCreated struct {
	sharedDomain.BaseEvent
	SeriesID uuid.UUID `json:"series_id"`
	Pattern  string    `json:"pattern"`
}

func NewSeriesCreated(routeID uuid.UUID, s *Series) *SeriesCreated {
	return &SeriesCreated{
		BaseEvent: sharedDomain.NewBaseEventAt(routeID, AggregateType, RoutingKeySeriesCreated, s.createdAt),
		SeriesID:  s.id,
		Pattern:   s.pattern,
	}
}

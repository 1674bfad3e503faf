package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/convoy/internal/shared/domain"
	"github.com/google/uuid"
)

// Route is an ordered set of stops served by one driver and vehicle on one day.
// Every mutating method consults the guard table before touching state, and a
// failed call leaves the route unchanged.
type Route struct {
	sharedDomain.BaseAggregateRoot
	name           string
	serviceDate    time.Time
	driverID       *uuid.UUID
	vehicleID      *uuid.UUID
	estimatedStart time.Time
	estimatedEnd   time.Time
	actualStart    *time.Time
	actualEnd      *time.Time
	status         Status
	seriesID       *uuid.UUID
	stops          []*Stop
	flags          []*ReviewFlag
}

// RoutePlan is what the scheduling process supplies when it creates a route.
type RoutePlan struct {
	ID             uuid.UUID
	Name           string
	ServiceDate    time.Time
	DriverID       *uuid.UUID
	VehicleID      *uuid.UUID
	EstimatedStart time.Time
	EstimatedEnd   time.Time
	Stops          []StopSpec
}

// StopPosition is one entry of a reorder request.
type StopPosition struct {
	StopID   uuid.UUID
	Position int
}

// NewRoute creates a route with its complete stop list. It starts PLANNED,
// or DRIVER_MISSING when the plan names no driver.
func NewRoute(plan RoutePlan, at time.Time) (*Route, error) {
	name := strings.TrimSpace(plan.Name)
	if name == "" {
		return nil, ErrEmptyRouteName
	}
	if !plan.EstimatedEnd.After(plan.EstimatedStart) {
		return nil, ErrInvalidTimeWindow
	}

	id := plan.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	r := &Route{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRootFrom(sharedDomain.NewBaseEntityAt(id, at)),
		name:              name,
		serviceDate:       dateOnly(plan.ServiceDate),
		driverID:          nonNil(plan.DriverID),
		vehicleID:         nonNil(plan.VehicleID),
		estimatedStart:    plan.EstimatedStart.UTC(),
		estimatedEnd:      plan.EstimatedEnd.UTC(),
		status:            StatusPlanned,
	}

	positions := make([]int, len(plan.Stops))
	type stopKey struct {
		child, schedule uuid.UUID
		kind            StopType
	}
	seen := make(map[stopKey]struct{}, len(plan.Stops))
	for i, spec := range plan.Stops {
		stop, err := newStop(id, spec)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i+1, err)
		}
		key := stopKey{stop.childID, stop.scheduleID, stop.stopType}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("stop %d: %w", i+1, ErrDuplicateStop)
		}
		seen[key] = struct{}{}
		positions[i] = spec.Position
		r.stops = append(r.stops, stop)
	}
	if err := checkPermutation(positions); err != nil {
		return nil, err
	}
	r.sortStops()
	if r.driverID == nil {
		r.status = StatusDriverMissing
	}

	r.AddDomainEvent(NewRouteCreated(r, at))
	return r, nil
}

// RehydrateRoute restores a route from storage without raising events.
func RehydrateRoute(
	id uuid.UUID,
	name string,
	serviceDate time.Time,
	driverID, vehicleID *uuid.UUID,
	estimatedStart, estimatedEnd time.Time,
	actualStart, actualEnd *time.Time,
	status Status,
	seriesID *uuid.UUID,
	stops []*Stop,
	flags []*ReviewFlag,
	version int,
	createdAt, updatedAt time.Time,
) *Route {
	r := &Route{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt), version),
		name:           name,
		serviceDate:    dateOnly(serviceDate),
		driverID:       driverID,
		vehicleID:      vehicleID,
		estimatedStart: estimatedStart,
		estimatedEnd:   estimatedEnd,
		actualStart:    actualStart,
		actualEnd:      actualEnd,
		status:         status,
		seriesID:       seriesID,
		stops:          stops,
		flags:          flags,
	}
	r.sortStops()
	return r
}

func (r *Route) Name() string              { return r.name }
func (r *Route) ServiceDate() time.Time    { return r.serviceDate }
func (r *Route) DriverID() *uuid.UUID      { return r.driverID }
func (r *Route) VehicleID() *uuid.UUID     { return r.vehicleID }
func (r *Route) EstimatedStart() time.Time { return r.estimatedStart }
func (r *Route) EstimatedEnd() time.Time   { return r.estimatedEnd }
func (r *Route) ActualStart() *time.Time   { return r.actualStart }
func (r *Route) ActualEnd() *time.Time     { return r.actualEnd }
func (r *Route) Status() Status            { return r.status }
func (r *Route) SeriesID() *uuid.UUID      { return r.seriesID }

// Stops returns the stops in position order.
func (r *Route) Stops() []*Stop {
	return slices.Clone(r.stops)
}

// ReviewFlags returns every flag, open or cleared.
func (r *Route) ReviewFlags() []*ReviewFlag {
	return slices.Clone(r.flags)
}

// OpenReviewFlags returns flags that still need an operator decision.
func (r *Route) OpenReviewFlags() []*ReviewFlag {
	var open []*ReviewFlag
	for _, f := range r.flags {
		if f.IsOpen() {
			open = append(open, f)
		}
	}
	return open
}

// Stop finds a stop by ID.
func (r *Route) Stop(stopID uuid.UUID) (*Stop, error) {
	for _, s := range r.stops {
		if s.id == stopID {
			return s, nil
		}
	}
	return nil, ErrStopNotFound
}

// Capabilities lists the operations the current status permits.
func (r *Route) Capabilities() []Operation {
	return Capabilities(r.status)
}

// AllStopsTerminal reports whether every stop is executed or cancelled.
// A route without stops is never considered finished.
func (r *Route) AllStopsTerminal() bool {
	if len(r.stops) == 0 {
		return false
	}
	for _, s := range r.stops {
		if !s.IsTerminal() {
			return false
		}
	}
	return true
}

// HasOutcomes reports whether any stop has been executed.
func (r *Route) HasOutcomes() bool {
	return slices.ContainsFunc(r.stops, (*Stop).IsExecuted)
}

// ReorderStops replaces every stop position in one step. The request must
// name each current stop exactly once and use positions 1..N.
func (r *Route) ReorderStops(order []StopPosition, at time.Time) error {
	if err := Guard(OpReorderStops, r.status); err != nil {
		return err
	}
	if len(order) != len(r.stops) {
		return orderingError("expected %d stops, got %d", len(r.stops), len(order))
	}

	next := make(map[uuid.UUID]int, len(order))
	positions := make([]int, 0, len(order))
	for _, entry := range order {
		if _, err := r.Stop(entry.StopID); err != nil {
			return orderingError("stop %s does not belong to route", entry.StopID)
		}
		if _, dup := next[entry.StopID]; dup {
			return orderingError("stop %s listed more than once", entry.StopID)
		}
		next[entry.StopID] = entry.Position
		positions = append(positions, entry.Position)
	}
	if err := checkPermutation(positions); err != nil {
		return err
	}

	for _, s := range r.stops {
		s.position = next[s.id]
	}
	r.sortStops()
	r.TouchAt(at)
	r.AddDomainEvent(NewStopsReordered(r, at))
	return nil
}

// ChangeStatus moves the route along the lifecycle state machine.
func (r *Route) ChangeStatus(to Status, at time.Time) error {
	if err := Guard(OpChangeStatus, r.status); err != nil {
		return err
	}
	if err := guardTransition(r.status, to); err != nil {
		return err
	}
	if (to == StatusInProgress || to == StatusPlanned) && r.driverID == nil {
		return ErrDriverRequired
	}

	from := r.status
	at = at.UTC()
	switch to {
	case StatusInProgress:
		r.actualStart = &at
	case StatusCompleted:
		r.actualEnd = &at
	case StatusCancelled:
		if r.actualStart != nil {
			r.actualEnd = &at
		}
	}
	r.status = to
	r.TouchAt(at)
	r.AddDomainEvent(NewRouteStatusChanged(r.ID(), from, to, at))
	return nil
}

// AssignDriver sets or clears the driver. Clearing it on a PLANNED route marks
// the route DRIVER_MISSING; assigning one to a DRIVER_MISSING route restores PLANNED.
func (r *Route) AssignDriver(driverID *uuid.UUID, at time.Time) error {
	if err := Guard(OpReassignDriver, r.status); err != nil {
		return err
	}
	driverID = nonNil(driverID)
	previous := r.driverID
	r.driverID = driverID

	switch {
	case driverID == nil && r.status == StatusPlanned:
		r.status = StatusDriverMissing
		r.AddDomainEvent(NewRouteStatusChanged(r.ID(), StatusPlanned, StatusDriverMissing, at))
	case driverID != nil && r.status == StatusDriverMissing:
		r.status = StatusPlanned
		r.AddDomainEvent(NewRouteStatusChanged(r.ID(), StatusDriverMissing, StatusPlanned, at))
	}

	r.TouchAt(at)
	r.AddDomainEvent(NewDriverReassigned(r.ID(), previous, driverID, at))
	return nil
}

// AssignVehicle sets or clears the vehicle.
func (r *Route) AssignVehicle(vehicleID *uuid.UUID, at time.Time) error {
	if err := Guard(OpReassignVehicle, r.status); err != nil {
		return err
	}
	vehicleID = nonNil(vehicleID)
	previous := r.vehicleID
	r.vehicleID = vehicleID
	r.TouchAt(at)
	r.AddDomainEvent(NewVehicleReassigned(r.ID(), previous, vehicleID, at))
	return nil
}

// RecordStopOutcome records the write-once outcome of a stop.
func (r *Route) RecordStopOutcome(stopID uuid.UUID, outcome Outcome, actor uuid.UUID, notes string, actualTime *time.Time, at time.Time) (*Stop, error) {
	stop, err := r.Stop(stopID)
	if err != nil {
		return nil, err
	}
	if err := Guard(OpRecordOutcome, r.status); err != nil {
		return nil, err
	}
	if err := stop.recordOutcome(outcome, actor, notes, actualTime, at); err != nil {
		return nil, err
	}
	r.TouchAt(at)
	r.AddDomainEvent(NewStopExecuted(r.ID(), stop))
	return stop, nil
}

// CancelStop cancels a pending stop. The route status is left alone.
func (r *Route) CancelStop(stopID uuid.UUID, reason string, actor uuid.UUID, at time.Time) (*Stop, error) {
	stop, err := r.Stop(stopID)
	if err != nil {
		return nil, err
	}
	if err := Guard(OpCancelStop, r.status); err != nil {
		return nil, err
	}
	if err := stop.cancel(reason, actor, at); err != nil {
		return nil, err
	}
	r.TouchAt(at)
	r.AddDomainEvent(NewStopCancelled(r.ID(), stop))
	return stop, nil
}

// FlagStopForReview attaches an advisory flag for an absence cancellation.
// It never changes the stop: a cancelled stop stays cancelled. Executed stops
// are skipped because there is nothing left to reinstate. Repeating the call
// for the same stop and absence is a no-op.
func (r *Route) FlagStopForReview(stopID, absenceID uuid.UUID, reason string, at time.Time) (FlagOutcome, error) {
	stop, err := r.Stop(stopID)
	if err != nil {
		return "", err
	}
	if stop.IsExecuted() {
		return FlagSkippedExecuted, nil
	}
	for _, f := range r.flags {
		if f.stopID == stopID && f.absenceID == absenceID {
			return FlagAlreadyPresent, nil
		}
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = AbsenceCancelledReason
	}
	flag := &ReviewFlag{
		id:        uuid.New(),
		routeID:   r.ID(),
		stopID:    stopID,
		absenceID: absenceID,
		reason:    reason,
		createdAt: at.UTC(),
	}
	r.flags = append(r.flags, flag)
	r.TouchAt(at)
	r.AddDomainEvent(NewStopFlaggedForReview(flag, stop.State()))
	return FlagCreated, nil
}

// ClearReviewFlag resolves a flag. Clearing an already cleared flag is a no-op.
func (r *Route) ClearReviewFlag(flagID, actor uuid.UUID, at time.Time) error {
	if err := Guard(OpClearFlag, r.status); err != nil {
		return err
	}
	if actor == uuid.Nil {
		return ErrActorRequired
	}
	idx := slices.IndexFunc(r.flags, func(f *ReviewFlag) bool { return f.id == flagID })
	if idx < 0 {
		return ErrFlagNotFound
	}
	flag := r.flags[idx]
	if !flag.IsOpen() {
		return nil
	}

	clearedAt := at.UTC()
	flag.clearedAt = &clearedAt
	flag.clearedBy = &actor
	r.TouchAt(at)
	r.AddDomainEvent(NewReviewFlagCleared(flag))
	return nil
}

// AttachSeries links the route to a newly created recurrence series.
func (r *Route) AttachSeries(series *Series, at time.Time) error {
	if err := Guard(OpCreateSeries, r.status); err != nil {
		return err
	}
	if r.seriesID != nil {
		return ErrSeriesAlreadyAssigned
	}
	id := series.ID()
	r.seriesID = &id
	r.TouchAt(at)
	r.AddDomainEvent(NewSeriesCreated(r.ID(), series))
	return nil
}

// MarkDeleted checks the delete guard and raises the deletion event.
func (r *Route) MarkDeleted(at time.Time) error {
	if err := Guard(OpDeleteRoute, r.status); err != nil {
		return err
	}
	r.AddDomainEvent(NewRouteDeleted(r, at))
	return nil
}

func (r *Route) sortStops() {
	slices.SortStableFunc(r.stops, func(a, b *Stop) int { return a.position - b.position })
}

// checkPermutation verifies positions are exactly 1..N.
func checkPermutation(positions []int) error {
	n := len(positions)
	seen := make([]bool, n+1)
	for _, p := range positions {
		if p < 1 || p > n {
			return orderingError("position %d outside 1..%d", p, n)
		}
		if seen[p] {
			return orderingError("position %d used more than once", p)
		}
		seen[p] = true
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nonNil(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	v := *id
	return &v
}

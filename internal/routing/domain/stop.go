package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/convoy/internal/shared/domain"
	"github.com/google/uuid"
)

// StopType distinguishes boarding from alighting.
type StopType string

const (
	StopTypePickup  StopType = "PICKUP"
	StopTypeDropoff StopType = "DROPOFF"
)

// ParseStopType accepts any casing.
func ParseStopType(value string) (StopType, error) {
	switch StopType(strings.ToUpper(strings.TrimSpace(value))) {
	case StopTypePickup:
		return StopTypePickup, nil
	case StopTypeDropoff:
		return StopTypeDropoff, nil
	default:
		return "", ErrInvalidStopType
	}
}

// Outcome is the recorded result of attempting a stop.
type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeNoShow    Outcome = "NO_SHOW"
	OutcomeRefused   Outcome = "REFUSED"
)

// ParseOutcome accepts any casing and dashes or underscores.
func ParseOutcome(value string) (Outcome, error) {
	switch Outcome(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), "-", "_"))) {
	case OutcomeCompleted:
		return OutcomeCompleted, nil
	case OutcomeNoShow:
		return OutcomeNoShow, nil
	case OutcomeRefused:
		return OutcomeRefused, nil
	default:
		return "", ErrInvalidOutcome
	}
}

// StopState summarizes the mutually exclusive sub-states of a stop.
type StopState string

const (
	StopStatePending   StopState = "PENDING"
	StopStateExecuted  StopState = "EXECUTED"
	StopStateCancelled StopState = "CANCELLED"
)

// Address is the location captured when the route was planned.
type Address struct {
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Notes      string
}

// Equals compares addresses field by field.
func (a Address) Equals(other sharedDomain.ValueObject) bool {
	o, ok := other.(Address)
	return ok && a == o
}

func (a Address) String() string {
	parts := []string{a.Line1}
	for _, p := range []string{a.Line2, strings.TrimSpace(a.PostalCode + " " + a.City)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// GuardianContact is the guardian reachable at the stop, captured at planning time.
type GuardianContact struct {
	Name  string
	Phone string
}

// Equals compares contacts field by field.
func (g GuardianContact) Equals(other sharedDomain.ValueObject) bool {
	o, ok := other.(GuardianContact)
	return ok && g == o
}

// Cancellation records who cancelled a stop and why.
type Cancellation struct {
	Reason string
	Actor  uuid.UUID
	At     time.Time
}

// Execution records the outcome of a stop.
type Execution struct {
	Outcome Outcome
	Actor   uuid.UUID
	At      time.Time
	Notes   string
}

// Stop is one pickup or dropoff within a route. Stops are only mutated
// through their Route so the lifecycle guards always apply.
type Stop struct {
	id            uuid.UUID
	routeID       uuid.UUID
	childID       uuid.UUID
	scheduleID    uuid.UUID
	stopType      StopType
	position      int
	address       Address
	guardian      GuardianContact
	estimatedTime time.Time
	actualTime    *time.Time
	cancellation  *Cancellation
	execution     *Execution
}

// StopSpec describes a stop handed over by the scheduling process.
type StopSpec struct {
	ID            uuid.UUID
	ChildID       uuid.UUID
	ScheduleID    uuid.UUID
	Type          StopType
	Position      int
	Address       Address
	Guardian      GuardianContact
	EstimatedTime time.Time
}

func newStop(routeID uuid.UUID, spec StopSpec) (*Stop, error) {
	if _, err := ParseStopType(string(spec.Type)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Address.Line1) == "" {
		return nil, ErrMissingAddress
	}
	id := spec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Stop{
		id:            id,
		routeID:       routeID,
		childID:       spec.ChildID,
		scheduleID:    spec.ScheduleID,
		stopType:      spec.Type,
		position:      spec.Position,
		address:       spec.Address,
		guardian:      spec.Guardian,
		estimatedTime: spec.EstimatedTime.UTC(),
	}, nil
}

// RehydrateStop restores a stop from storage.
func RehydrateStop(
	id, routeID, childID, scheduleID uuid.UUID,
	stopType StopType,
	position int,
	address Address,
	guardian GuardianContact,
	estimatedTime time.Time,
	actualTime *time.Time,
	cancellation *Cancellation,
	execution *Execution,
) *Stop {
	return &Stop{
		id:            id,
		routeID:       routeID,
		childID:       childID,
		scheduleID:    scheduleID,
		stopType:      stopType,
		position:      position,
		address:       address,
		guardian:      guardian,
		estimatedTime: estimatedTime,
		actualTime:    actualTime,
		cancellation:  cancellation,
		execution:     execution,
	}
}

func (s *Stop) ID() uuid.UUID               { return s.id }
func (s *Stop) RouteID() uuid.UUID          { return s.routeID }
func (s *Stop) ChildID() uuid.UUID          { return s.childID }
func (s *Stop) ScheduleID() uuid.UUID       { return s.scheduleID }
func (s *Stop) Type() StopType              { return s.stopType }
func (s *Stop) Position() int               { return s.position }
func (s *Stop) Address() Address            { return s.address }
func (s *Stop) Guardian() GuardianContact   { return s.guardian }
func (s *Stop) EstimatedTime() time.Time    { return s.estimatedTime }
func (s *Stop) ActualTime() *time.Time      { return s.actualTime }
func (s *Stop) Cancellation() *Cancellation { return s.cancellation }
func (s *Stop) Execution() *Execution       { return s.execution }
func (s *Stop) IsCancelled() bool           { return s.cancellation != nil }
func (s *Stop) IsExecuted() bool            { return s.execution != nil }
func (s *Stop) IsTerminal() bool            { return s.IsCancelled() || s.IsExecuted() }

// State reports the stop's sub-state.
func (s *Stop) State() StopState {
	switch {
	case s.IsCancelled():
		return StopStateCancelled
	case s.IsExecuted():
		return StopStateExecuted
	default:
		return StopStatePending
	}
}

// recordOutcome is write-once and never applies to a cancelled stop.
func (s *Stop) recordOutcome(outcome Outcome, actor uuid.UUID, notes string, actualTime *time.Time, at time.Time) error {
	if _, err := ParseOutcome(string(outcome)); err != nil {
		return err
	}
	if actor == uuid.Nil {
		return ErrActorRequired
	}
	if s.IsCancelled() {
		return stopStateError(s, "is cancelled")
	}
	if s.IsExecuted() {
		return stopStateError(s, "already has outcome "+string(s.execution.Outcome))
	}

	s.execution = &Execution{
		Outcome: outcome,
		Actor:   actor,
		At:      at.UTC(),
		Notes:   strings.TrimSpace(notes),
	}
	if actualTime != nil {
		t := actualTime.UTC()
		s.actualTime = &t
	}
	return nil
}

func (s *Stop) cancel(reason string, actor uuid.UUID, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if actor == uuid.Nil {
		return ErrActorRequired
	}
	if s.IsExecuted() {
		return stopStateError(s, "already has outcome "+string(s.execution.Outcome))
	}
	if s.IsCancelled() {
		return stopStateError(s, "is already cancelled")
	}

	s.cancellation = &Cancellation{Reason: reason, Actor: actor, At: at.UTC()}
	return nil
}

func stopStateError(s *Stop, detail string) error {
	return &StopStateError{StopID: s.id, State: s.State(), Detail: detail}
}

// StopStateError reports a mutation attempted on a stop in a terminal state.
type StopStateError struct {
	StopID uuid.UUID
	State  StopState
	Detail string
}

func (e *StopStateError) Error() string {
	return "stop " + e.StopID.String() + " " + e.Detail
}

// Is makes errors.Is(err, ErrInvalidStopState) true.
func (e *StopStateError) Is(target error) bool {
	return target == ErrInvalidStopState
}

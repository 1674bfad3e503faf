package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPreconditionFailed means the route's status does not permit the operation.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrInvalidOrdering means a reorder request is not a permutation of the route's stops.
	ErrInvalidOrdering = errors.New("invalid stop ordering")
	// ErrInvalidStopState means the stop already reached a terminal state.
	ErrInvalidStopState = errors.New("invalid stop state")
	// ErrConcurrentModification means another writer changed the route first.
	ErrConcurrentModification = errors.New("route was modified concurrently")
	// ErrRouteExists means a create reused the ID of a stored route.
	ErrRouteExists = errors.New("route already exists")
	// ErrNotFound is the root of every lookup failure.
	ErrNotFound = errors.New("not found")
	// ErrValidation is the root of input validation failures.
	ErrValidation = errors.New("validation failed")
)

var (
	ErrRouteNotFound = fmt.Errorf("route %w", ErrNotFound)
	ErrStopNotFound  = fmt.Errorf("stop %w", ErrNotFound)
	ErrFlagNotFound  = fmt.Errorf("review flag %w", ErrNotFound)

	ErrDriverRequired        = fmt.Errorf("%w: route has no driver assigned", ErrPreconditionFailed)
	ErrSeriesAlreadyAssigned = fmt.Errorf("%w: route already belongs to a series", ErrPreconditionFailed)

	ErrEmptyRouteName       = fmt.Errorf("%w: route name is required", ErrValidation)
	ErrInvalidTimeWindow    = fmt.Errorf("%w: estimated end must be after estimated start", ErrValidation)
	ErrInvalidStopType      = fmt.Errorf("%w: stop type must be PICKUP or DROPOFF", ErrValidation)
	ErrInvalidOutcome       = fmt.Errorf("%w: outcome must be COMPLETED, NO_SHOW or REFUSED", ErrValidation)
	ErrInvalidStatus        = fmt.Errorf("%w: unknown route status", ErrValidation)
	ErrDuplicateStop        = fmt.Errorf("%w: child already has a stop of this type for the schedule", ErrValidation)
	ErrMissingAddress       = fmt.Errorf("%w: stop address is required", ErrValidation)
	ErrReasonRequired       = fmt.Errorf("%w: a reason is required", ErrValidation)
	ErrActorRequired        = fmt.Errorf("%w: an actor is required", ErrValidation)
	ErrInvalidSeriesPattern = fmt.Errorf("%w: invalid recurrence pattern", ErrValidation)
)

// PreconditionError reports an operation attempted in a status that does not allow it.
type PreconditionError struct {
	Operation Operation
	Required  []Status
	Current   Status
}

func (e *PreconditionError) Error() string {
	required := make([]string, len(e.Required))
	for i, s := range e.Required {
		required[i] = string(s)
	}
	return fmt.Sprintf("cannot %s on a %s route (requires %s)",
		e.Operation.Describe(), e.Current.Label(), strings.Join(required, " or "))
}

// Is makes errors.Is(err, ErrPreconditionFailed) true.
func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

// OrderingError explains why a reorder request was rejected.
type OrderingError struct {
	Reason string
}

func (e *OrderingError) Error() string {
	return "invalid stop ordering: " + e.Reason
}

// Is makes errors.Is(err, ErrInvalidOrdering) true.
func (e *OrderingError) Is(target error) bool {
	return target == ErrInvalidOrdering
}

func orderingError(format string, args ...any) error {
	return &OrderingError{Reason: fmt.Sprintf(format, args...)}
}

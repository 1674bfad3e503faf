package commands

import (
	"errors"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// referenceError keeps the fleet directory's message while matching the
// routing sentinel callers map to responses.
type referenceError struct {
	err  error
	kind error
}

func (e *referenceError) Error() string   { return e.err.Error() }
func (e *referenceError) Unwrap() []error { return []error{e.err, e.kind} }

func fleetReferenceError(err error) error {
	switch {
	case errors.Is(err, fleetDomain.ErrNotFound):
		return &referenceError{err: err, kind: domain.ErrNotFound}
	case errors.Is(err, fleetDomain.ErrInactive):
		return &referenceError{err: err, kind: domain.ErrValidation}
	default:
		return err
	}
}

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	fleetDomain "github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/resilience"
)

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Rule prints a separator line.
func Rule(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("-", 40))
}

// ParseID parses a UUID argument, naming it in the error.
func ParseID(kind, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID: %w", kind, err)
	}
	return id, nil
}

// ExpectedVersion turns the --version flag into the optional precondition;
// a negative value means no check.
func ExpectedVersion(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}

// Describe turns known failures into operator-facing messages.
func Describe(err error) string {
	var precondition *domain.PreconditionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrConcurrentModification):
		return "someone else just changed this route, please refresh"
	case errors.As(err, &precondition):
		return precondition.Error()
	case errors.Is(err, resilience.ErrUnavailable):
		return "the fleet directory is unavailable, try again shortly"
	case errors.Is(err, fleetDomain.ErrInactive):
		return err.Error() + " (choose an active record)"
	default:
		return err.Error()
	}
}

package domain

import "strings"

// Status is the lifecycle state of a route.
type Status string

const (
	StatusPlanned       Status = "PLANNED"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
	StatusDriverMissing Status = "DRIVER_MISSING"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPlanned,
	StatusDriverMissing,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus accepts any casing and dashes or underscores.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), "-", "_")))
	for _, s := range AllStatuses {
		if s == normalized {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Label is the lower-case human form used in error messages.
func (s Status) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", "-"))
}

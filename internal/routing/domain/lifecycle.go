package domain

import (
	"slices"
	"strings"
)

// Operation names a mutating action that the guard table controls.
type Operation string

const (
	OpReorderStops    Operation = "reorder_stops"
	OpReassignDriver  Operation = "reassign_driver"
	OpReassignVehicle Operation = "reassign_vehicle"
	OpRecordOutcome   Operation = "record_outcome"
	OpChangeStatus    Operation = "change_status"
	OpCreateSeries    Operation = "create_series"
	OpCancelStop      Operation = "cancel_stop"
	OpClearFlag       Operation = "clear_review_flag"
	OpDeleteRoute     Operation = "delete_route"
)

// Describe is the verb phrase used in error messages.
func (o Operation) Describe() string {
	switch o {
	case OpReorderStops:
		return "reorder stops"
	case OpReassignDriver:
		return "reassign the driver"
	case OpReassignVehicle:
		return "reassign the vehicle"
	case OpRecordOutcome:
		return "record a stop outcome"
	case OpChangeStatus:
		return "change the status"
	case OpCreateSeries:
		return "create a series"
	case OpCancelStop:
		return "cancel a stop"
	case OpClearFlag:
		return "clear a review flag"
	case OpDeleteRoute:
		return "delete the route"
	}
	if strings.HasPrefix(string(o), "transition_to_") {
		target := Status(strings.TrimPrefix(string(o), "transition_to_"))
		return "move to " + target.Label()
	}
	return strings.ReplaceAll(string(o), "_", " ")
}

func transitionOperation(to Status) Operation {
	return Operation("transition_to_" + string(to))
}

// guardTable is the single source of truth for which operations each status allows.
var guardTable = map[Operation][]Status{
	OpReorderStops:    {StatusPlanned, StatusDriverMissing},
	OpReassignDriver:  {StatusPlanned, StatusDriverMissing},
	OpReassignVehicle: {StatusPlanned, StatusDriverMissing},
	OpRecordOutcome:   {StatusInProgress},
	OpChangeStatus:    {StatusPlanned, StatusInProgress, StatusDriverMissing},
	OpCreateSeries:    {StatusPlanned},
	OpCancelStop:      {StatusPlanned, StatusInProgress, StatusDriverMissing},
	OpClearFlag:       AllStatuses,
	OpDeleteRoute:     {StatusPlanned, StatusDriverMissing, StatusCompleted, StatusCancelled},
}

// guardedOperations fixes the order capabilities are reported in.
var guardedOperations = []Operation{
	OpReorderStops,
	OpReassignDriver,
	OpReassignVehicle,
	OpRecordOutcome,
	OpChangeStatus,
	OpCreateSeries,
	OpCancelStop,
	OpClearFlag,
	OpDeleteRoute,
}

var transitions = map[Status][]Status{
	StatusPlanned:       {StatusInProgress, StatusCompleted, StatusCancelled, StatusDriverMissing},
	StatusDriverMissing: {StatusPlanned, StatusCancelled},
	StatusInProgress:    {StatusCompleted, StatusCancelled},
}

// PermittedStatuses returns the statuses in which op is allowed.
func PermittedStatuses(op Operation) []Status {
	return slices.Clone(guardTable[op])
}

// Allows reports whether op is permitted while in status.
func Allows(op Operation, status Status) bool {
	return slices.Contains(guardTable[op], status)
}

// Guard returns a *PreconditionError when op is not permitted in status.
func Guard(op Operation, status Status) error {
	if Allows(op, status) {
		return nil
	}
	return &PreconditionError{Operation: op, Required: PermittedStatuses(op), Current: status}
}

// Capabilities lists the operations permitted in status.
func Capabilities(status Status) []Operation {
	ops := make([]Operation, 0, len(guardedOperations))
	for _, op := range guardedOperations {
		if Allows(op, status) {
			ops = append(ops, op)
		}
	}
	return ops
}

// CanTransition reports whether the state machine has an edge from -> to.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// NextStatuses returns the statuses reachable from status in one step.
func NextStatuses(status Status) []Status {
	return slices.Clone(transitions[status])
}

func guardTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	var sources []Status
	for _, s := range AllStatuses {
		if CanTransition(s, to) {
			sources = append(sources, s)
		}
	}
	return &PreconditionError{Operation: transitionOperation(to), Required: sources, Current: from}
}

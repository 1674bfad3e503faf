package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoutingKeyAbsenceCancelled is published by the absence subsystem.
const RoutingKeyAbsenceCancelled = "absences.absence.cancelled"

// StopRef points at one stop of one route.
type StopRef struct {
	RouteID uuid.UUID `json:"route_id"`
	StopID  uuid.UUID `json:"stop_id"`
}

// AbsenceCancelled is the integration event raised when an absence is withdrawn.
// AffectedRouteStops is the list the absence subsystem computed at cancellation.
type AbsenceCancelled struct {
	AbsenceID          uuid.UUID `json:"absence_id"`
	ChildID            uuid.UUID `json:"child_id"`
	Reason             string    `json:"reason,omitempty"`
	CancelledBy        uuid.UUID `json:"cancelled_by"`
	CancelledAt        time.Time `json:"cancelled_at"`
	AffectedRouteStops []StopRef `json:"affected_route_stops"`
}

// GroupByRoute groups stop references by route, keeping first-seen order and
// dropping duplicate references.
func GroupByRoute(refs []StopRef) ([]uuid.UUID, map[uuid.UUID][]uuid.UUID) {
	var order []uuid.UUID
	grouped := make(map[uuid.UUID][]uuid.UUID)
	seen := make(map[StopRef]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		if _, ok := grouped[ref.RouteID]; !ok {
			order = append(order, ref.RouteID)
		}
		grouped[ref.RouteID] = append(grouped[ref.RouteID], ref.StopID)
	}
	return order, grouped
}

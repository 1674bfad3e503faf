package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// RoutePlanRequest is the JSON document accepted by the API, the CLI and the
// MCP server to create a route.
type RoutePlanRequest struct {
	ID             uuid.UUID     `json:"id,omitempty"`
	Name           string        `json:"name"`
	ServiceDate    string        `json:"service_date"`
	DriverID       *uuid.UUID    `json:"driver_id,omitempty"`
	VehicleID      *uuid.UUID    `json:"vehicle_id,omitempty"`
	EstimatedStart time.Time     `json:"estimated_start"`
	EstimatedEnd   time.Time     `json:"estimated_end"`
	Stops          []StopRequest `json:"stops"`
}

type StopRequest struct {
	ID            uuid.UUID       `json:"id,omitempty"`
	ChildID       uuid.UUID       `json:"child_id"`
	ScheduleID    uuid.UUID       `json:"schedule_id"`
	Type          string          `json:"type"`
	Position      int             `json:"position"`
	Address       AddressRequest  `json:"address"`
	Guardian      GuardianRequest `json:"guardian"`
	EstimatedTime time.Time       `json:"estimated_time"`
}

type AddressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type GuardianRequest struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Command converts the request. The service date defaults to the date of
// the estimated start.
func (r RoutePlanRequest) Command(actor uuid.UUID) (CreateRouteCommand, error) {
	serviceDate := r.EstimatedStart
	if r.ServiceDate != "" {
		parsed, err := time.Parse(time.DateOnly, r.ServiceDate)
		if err != nil {
			return CreateRouteCommand{}, fmt.Errorf("%w: service_date must be YYYY-MM-DD", domain.ErrValidation)
		}
		serviceDate = parsed
	}

	stops := make([]domain.StopSpec, len(r.Stops))
	for i, s := range r.Stops {
		kind, err := domain.ParseStopType(s.Type)
		if err != nil {
			return CreateRouteCommand{}, fmt.Errorf("stop %d: %w", i+1, err)
		}
		stops[i] = domain.StopSpec{
			ID:         s.ID,
			ChildID:    s.ChildID,
			ScheduleID: s.ScheduleID,
			Type:       kind,
			Position:   s.Position,
			Address: domain.Address{
				Line1:      s.Address.Line1,
				Line2:      s.Address.Line2,
				City:       s.Address.City,
				PostalCode: s.Address.PostalCode,
				Notes:      s.Address.Notes,
			},
			Guardian:      domain.GuardianContact{Name: s.Guardian.Name, Phone: s.Guardian.Phone},
			EstimatedTime: s.EstimatedTime,
		}
	}

	return CreateRouteCommand{
		RouteID:        r.ID,
		Name:           r.Name,
		ServiceDate:    serviceDate,
		DriverID:       r.DriverID,
		VehicleID:      r.VehicleID,
		EstimatedStart: r.EstimatedStart,
		EstimatedEnd:   r.EstimatedEnd,
		Stops:          stops,
		Actor:          actor,
	}, nil
}

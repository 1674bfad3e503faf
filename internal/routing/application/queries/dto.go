package queries

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
)

// RouteDTO is the full read view of a route.
type RouteDTO struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	ServiceDate         string          `json:"service_date"`
	Status              string          `json:"status"`
	DriverID            *uuid.UUID      `json:"driver_id,omitempty"`
	DriverName          string          `json:"driver_name,omitempty"`
	VehicleID           *uuid.UUID      `json:"vehicle_id,omitempty"`
	VehicleRegistration string          `json:"vehicle_registration,omitempty"`
	EstimatedStart      time.Time       `json:"estimated_start"`
	EstimatedEnd        time.Time       `json:"estimated_end"`
	ActualStart         *time.Time      `json:"actual_start,omitempty"`
	ActualEnd           *time.Time      `json:"actual_end,omitempty"`
	SeriesID            *uuid.UUID      `json:"series_id,omitempty"`
	Version             int             `json:"version"`
	Stops               []StopDTO       `json:"stops"`
	ReviewFlags         []ReviewFlagDTO `json:"review_flags"`
	Delay               DelaySummaryDTO `json:"delay"`
	Capabilities        []string        `json:"capabilities"`
	NextStatuses        []string        `json:"next_statuses"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// StopDTO is the read view of a stop.
type StopDTO struct {
	ID                 uuid.UUID   `json:"id"`
	RouteID            uuid.UUID   `json:"route_id"`
	ChildID            uuid.UUID   `json:"child_id"`
	ScheduleID         uuid.UUID   `json:"schedule_id"`
	Type               string      `json:"type"`
	Position           int         `json:"position"`
	Address            AddressDTO  `json:"address"`
	Guardian           GuardianDTO `json:"guardian"`
	EstimatedTime      time.Time   `json:"estimated_time"`
	ActualTime         *time.Time  `json:"actual_time,omitempty"`
	State              string      `json:"state"`
	Outcome            string      `json:"outcome,omitempty"`
	OutcomeNotes       string      `json:"outcome_notes,omitempty"`
	ExecutedBy         *uuid.UUID  `json:"executed_by,omitempty"`
	ExecutedAt         *time.Time  `json:"executed_at,omitempty"`
	CancellationReason string      `json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID  `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time  `json:"cancelled_at,omitempty"`
	Delay              *DelayDTO   `json:"delay,omitempty"`
	NeedsReview        bool        `json:"needs_review"`
}

type AddressDTO struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type GuardianDTO struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// DelayDTO annotates a late stop.
type DelayDTO struct {
	Type       string    `json:"type"`
	Minutes    int       `json:"minutes"`
	DetectedAt time.Time `json:"detected_at"`
}

// DelaySummaryDTO is the JSON form of domain.DelaySummary.
type DelaySummaryDTO struct {
	MaxDelayMinutes  int        `json:"max_delay_minutes"`
	DelayedStopCount int        `json:"delayed_stop_count"`
	LastDetectedAt   *time.Time `json:"last_detected_at,omitempty"`
}

// ReviewFlagDTO is an advisory flag raised by an absence cancellation.
type ReviewFlagDTO struct {
	ID        uuid.UUID  `json:"id"`
	RouteID   uuid.UUID  `json:"route_id"`
	StopID    uuid.UUID  `json:"stop_id"`
	AbsenceID uuid.UUID  `json:"absence_id"`
	Reason    string     `json:"reason"`
	Open      bool       `json:"open"`
	CreatedAt time.Time  `json:"created_at"`
	ClearedAt *time.Time `json:"cleared_at,omitempty"`
	ClearedBy *uuid.UUID `json:"cleared_by,omitempty"`
}

// RouteSummaryDTO is one row of a day listing.
type RouteSummaryDTO struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	DriverID       *uuid.UUID      `json:"driver_id,omitempty"`
	VehicleID      *uuid.UUID      `json:"vehicle_id,omitempty"`
	EstimatedStart time.Time       `json:"estimated_start"`
	EstimatedEnd   time.Time       `json:"estimated_end"`
	StopCount      int             `json:"stop_count"`
	ExecutedStops  int             `json:"executed_stops"`
	CancelledStops int             `json:"cancelled_stops"`
	OpenFlags      int             `json:"open_flags"`
	Delay          DelaySummaryDTO `json:"delay"`
}

// NewDelaySummaryDTO converts a summary for transport.
func NewDelaySummaryDTO(s domain.DelaySummary) DelaySummaryDTO {
	return DelaySummaryDTO{
		MaxDelayMinutes:  s.MaxDelayMinutes,
		DelayedStopCount: s.DelayedStopCount,
		LastDetectedAt:   s.LastDetectedAt,
	}
}

// NewReviewFlagDTO converts a flag.
func NewReviewFlagDTO(f *domain.ReviewFlag) ReviewFlagDTO {
	return ReviewFlagDTO{
		ID:        f.ID(),
		RouteID:   f.RouteID(),
		StopID:    f.StopID(),
		AbsenceID: f.AbsenceID(),
		Reason:    f.Reason(),
		Open:      f.IsOpen(),
		CreatedAt: f.CreatedAt(),
		ClearedAt: f.ClearedAt(),
		ClearedBy: f.ClearedBy(),
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AbsenceCancelledReason is the default flag reason for the absence propagator.
const AbsenceCancelledReason = "absence cancelled: pickup/dropoff may need reinstatement"

// ReviewFlag marks a stop for an operator to reconsider. It never changes the
// stop's state and is only cleared by an explicit operator action.
type ReviewFlag struct {
	id        uuid.UUID
	routeID   uuid.UUID
	stopID    uuid.UUID
	absenceID uuid.UUID
	reason    string
	createdAt time.Time
	clearedAt *time.Time
	clearedBy *uuid.UUID
}

// RehydrateReviewFlag restores a flag from storage.
func RehydrateReviewFlag(
	id, routeID, stopID, absenceID uuid.UUID,
	reason string,
	createdAt time.Time,
	clearedAt *time.Time,
	clearedBy *uuid.UUID,
) *ReviewFlag {
	return &ReviewFlag{
		id:        id,
		routeID:   routeID,
		stopID:    stopID,
		absenceID: absenceID,
		reason:    reason,
		createdAt: createdAt,
		clearedAt: clearedAt,
		clearedBy: clearedBy,
	}
}

func (f *ReviewFlag) ID() uuid.UUID         { return f.id }
func (f *ReviewFlag) RouteID() uuid.UUID    { return f.routeID }
func (f *ReviewFlag) StopID() uuid.UUID     { return f.stopID }
func (f *ReviewFlag) AbsenceID() uuid.UUID  { return f.absenceID }
func (f *ReviewFlag) Reason() string        { return f.reason }
func (f *ReviewFlag) CreatedAt() time.Time  { return f.createdAt }
func (f *ReviewFlag) ClearedAt() *time.Time { return f.clearedAt }
func (f *ReviewFlag) ClearedBy() *uuid.UUID { return f.clearedBy }
func (f *ReviewFlag) IsOpen() bool          { return f.clearedAt == nil }

// FlagOutcome reports what FlagStopForReview did with one stop reference.
type FlagOutcome string

const (
	FlagCreated         FlagOutcome = "flagged"
	FlagAlreadyPresent  FlagOutcome = "already_flagged"
	FlagSkippedExecuted FlagOutcome = "skipped_executed"
)

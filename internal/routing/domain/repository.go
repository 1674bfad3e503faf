package domain

import (
	"context"
	"time"

	sharedDomain "github.com/felixgeelhaar/convoy/internal/shared/domain"
	"github.com/google/uuid"
)

// RouteRepository persists Route aggregates together with their stops and flags.
// Save fails with ErrConcurrentModification when the stored version differs
// from the aggregate's loaded version.
type RouteRepository interface {
	sharedDomain.Repository[*Route]
	FindByStopID(ctx context.Context, stopID uuid.UUID) (*Route, error)
	FindByDate(ctx context.Context, date time.Time) ([]*Route, error)
	RouteIDForStop(ctx context.Context, stopID uuid.UUID) (uuid.UUID, error)
}

// SeriesRepository persists recurrence series.
type SeriesRepository interface {
	Save(ctx context.Context, series *Series) error
	FindByID(ctx context.Context, id uuid.UUID) (*Series, error)
}

package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database"
)

// ErrSeriesNotFound is returned when a series ID has no row.
var ErrSeriesNotFound = fmt.Errorf("series %w", domain.ErrNotFound)

// SeriesRepository implements domain.SeriesRepository.
type SeriesRepository struct {
	conn database.Connection
}

// NewSeriesRepository creates a series repository.
func NewSeriesRepository(conn database.Connection) *SeriesRepository {
	return &SeriesRepository{conn: conn}
}

var _ domain.SeriesRepository = (*SeriesRepository)(nil)

// Save inserts a series. Series are immutable once created.
func (r *SeriesRepository) Save(ctx context.Context, series *domain.Series) error {
	_, err := database.On(ctx, r.conn).Exec(ctx, `
		INSERT INTO route_series (id, template_route_id, pattern, starts_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		series.ID(),
		series.TemplateRouteID(),
		series.Pattern(),
		series.StartsAt(),
		series.CreatedBy(),
		series.CreatedAt(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errors.Join(domain.ErrConcurrentModification, err)
		}
		return fmt.Errorf("failed to save series: %w", err)
	}
	return nil
}

// FindByID loads a series. A series whose template was deleted comes back
// with a nil template ID.
func (r *SeriesRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Series, error) {
	var (
		seriesID  uuid.UUID
		template  uuid.NullUUID
		pattern   string
		startsAt  time.Time
		createdBy uuid.UUID
		createdAt time.Time
	)
	err := database.On(ctx, r.conn).QueryRow(ctx, `
		SELECT id, template_route_id, pattern, starts_at, created_by, created_at
		FROM route_series WHERE id = ?`, id).
		Scan(&seriesID, &template, &pattern, &startsAt, &createdBy, &createdAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	return domain.RehydrateSeries(seriesID, template.UUID, pattern, startsAt.UTC(), createdBy, createdAt.UTC()), nil
}

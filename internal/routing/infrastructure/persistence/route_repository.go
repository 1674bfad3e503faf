// Package persistence stores routes, stops, review flags and series through
// database.Connection. The SQL is written once with ? placeholders and runs on
// both PostgreSQL and SQLite.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/routing/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database"
)

// RouteRepository implements domain.RouteRepository.
type RouteRepository struct {
	conn   database.Connection
	sealer *crypto.FieldSealer
}

// RouteRepositoryOption configures a RouteRepository.
type RouteRepositoryOption func(*RouteRepository)

// WithContactEncryption encrypts guardian phone numbers at rest, bound to
// the stop they belong to.
func WithContactEncryption(sealer *crypto.FieldSealer) RouteRepositoryOption {
	return func(r *RouteRepository) {
		r.sealer = sealer
	}
}

// NewRouteRepository creates a route repository.
func NewRouteRepository(conn database.Connection, opts ...RouteRepositoryOption) *RouteRepository {
	r := &RouteRepository{conn: conn}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ domain.RouteRepository = (*RouteRepository)(nil)

type routeRow struct {
	ID             uuid.UUID
	Name           string
	ServiceDate    time.Time
	DriverID       uuid.NullUUID
	VehicleID      uuid.NullUUID
	EstimatedStart time.Time
	EstimatedEnd   time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time
	Status         string
	SeriesID       uuid.NullUUID
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type stopRow struct {
	ID             uuid.UUID
	RouteID        uuid.UUID
	ChildID        uuid.UUID
	ScheduleID     uuid.UUID
	StopType       string
	Position       int
	AddressLine1   string
	AddressLine2   string
	City           string
	PostalCode     string
	AddressNotes   string
	GuardianName   string
	GuardianPhone  string
	EstimatedTime  time.Time
	ActualTime     *time.Time
	CancelledAt    *time.Time
	CancelledBy    uuid.NullUUID
	CancelReason   *string
	Outcome        *string
	ExecutedAt     *time.Time
	ExecutedBy     uuid.NullUUID
	ExecutionNotes *string
}

type flagRow struct {
	ID        uuid.UUID
	RouteID   uuid.UUID
	StopID    uuid.UUID
	AbsenceID uuid.UUID
	Reason    string
	CreatedAt time.Time
	ClearedAt *time.Time
	ClearedBy uuid.NullUUID
}

const routeColumns = `id, name, service_date, driver_id, vehicle_id, estimated_start, estimated_end,
	actual_start, actual_end, status, series_id, version, created_at, updated_at`

const stopColumns = `id, route_id, child_id, schedule_id, stop_type, position,
	address_line1, address_line2, city, postal_code, address_notes, guardian_name, guardian_phone,
	estimated_time, actual_time, cancelled_at, cancelled_by, cancel_reason,
	outcome, executed_at, executed_by, execution_notes`

const flagColumns = `id, route_id, stop_id, absence_id, reason, created_at, cleared_at, cleared_by`

// Save upserts the route row under an optimistic version check, then rewrites
// its stops and review flags. Callers run it inside a unit of work so the
// three writes land together.
func (r *RouteRepository) Save(ctx context.Context, route *domain.Route) error {
	exec := database.On(ctx, r.conn)

	query := `
		INSERT INTO routes (` + routeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			driver_id = excluded.driver_id,
			vehicle_id = excluded.vehicle_id,
			estimated_start = excluded.estimated_start,
			estimated_end = excluded.estimated_end,
			actual_start = excluded.actual_start,
			actual_end = excluded.actual_end,
			status = excluded.status,
			series_id = excluded.series_id,
			version = routes.version + 1,
			updated_at = excluded.updated_at
		WHERE routes.version = ?
		RETURNING version
	`

	var newVersion int
	err := exec.QueryRow(ctx, query,
		route.ID(),
		route.Name(),
		route.ServiceDate(),
		route.DriverID(),
		route.VehicleID(),
		route.EstimatedStart(),
		route.EstimatedEnd(),
		route.ActualStart(),
		route.ActualEnd(),
		route.Status().String(),
		route.SeriesID(),
		route.Version()+1,
		route.CreatedAt(),
		route.UpdatedAt(),
		route.Version(),
	).Scan(&newVersion)
	if err != nil {
		if database.IsNoRows(err) {
			if route.Version() == 0 {
				return fmt.Errorf("%w: %s", domain.ErrRouteExists, route.ID())
			}
			return domain.ErrConcurrentModification
		}
		return fmt.Errorf("failed to save route: %w", err)
	}

	if _, err := exec.Exec(ctx, `DELETE FROM route_stops WHERE route_id = ?`, route.ID()); err != nil {
		return fmt.Errorf("failed to clear stops: %w", err)
	}
	for _, stop := range route.Stops() {
		if err := r.insertStop(ctx, exec, stop); err != nil {
			return err
		}
	}
	// Stop deletion cascades to flags, so they are written after the stops.
	for _, flag := range route.ReviewFlags() {
		if err := insertFlag(ctx, exec, flag); err != nil {
			return err
		}
	}

	route.SetVersion(newVersion)
	return nil
}

func (r *RouteRepository) insertStop(ctx context.Context, exec database.Executor, stop *domain.Stop) error {
	phone, err := r.sealer.Seal(stop.Guardian().Phone, sealBinding(stop.ID()))
	if err != nil {
		return fmt.Errorf("failed to seal guardian contact: %w", err)
	}

	var (
		cancelledAt, executedAt *time.Time
		cancelledBy, executedBy *uuid.UUID
		cancelReason, outcome   *string
		executionNotes          *string
	)
	if c := stop.Cancellation(); c != nil {
		cancelledAt, cancelledBy, cancelReason = &c.At, &c.Actor, &c.Reason
	}
	if e := stop.Execution(); e != nil {
		o := string(e.Outcome)
		executedAt, executedBy, outcome, executionNotes = &e.At, &e.Actor, &o, &e.Notes
	}

	address := stop.Address()
	_, err = exec.Exec(ctx, `
		INSERT INTO route_stops (`+stopColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stop.ID(),
		stop.RouteID(),
		stop.ChildID(),
		stop.ScheduleID(),
		string(stop.Type()),
		stop.Position(),
		address.Line1,
		address.Line2,
		address.City,
		address.PostalCode,
		address.Notes,
		stop.Guardian().Name,
		phone,
		stop.EstimatedTime(),
		stop.ActualTime(),
		cancelledAt,
		cancelledBy,
		cancelReason,
		outcome,
		executedAt,
		executedBy,
		executionNotes,
	)
	if err != nil {
		return fmt.Errorf("failed to save stop %s: %w", stop.ID(), err)
	}
	return nil
}

func insertFlag(ctx context.Context, exec database.Executor, flag *domain.ReviewFlag) error {
	_, err := exec.Exec(ctx, `
		INSERT INTO route_review_flags (`+flagColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		flag.ID(),
		flag.RouteID(),
		flag.StopID(),
		flag.AbsenceID(),
		flag.Reason(),
		flag.CreatedAt(),
		flag.ClearedAt(),
		flag.ClearedBy(),
	)
	if err != nil {
		return fmt.Errorf("failed to save review flag %s: %w", flag.ID(), err)
	}
	return nil
}

// FindByID loads a route with its stops and flags.
func (r *RouteRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Route, error) {
	exec := database.On(ctx, r.conn)

	row, err := scanRoute(exec.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = ?`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrRouteNotFound
		}
		return nil, fmt.Errorf("failed to load route: %w", err)
	}
	return r.assemble(ctx, exec, row)
}

// FindByStopID loads the route that owns stopID.
func (r *RouteRepository) FindByStopID(ctx context.Context, stopID uuid.UUID) (*domain.Route, error) {
	routeID, err := r.RouteIDForStop(ctx, stopID)
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, routeID)
}

// RouteIDForStop resolves the owning route without loading it, so callers can
// take the route lock before reading.
func (r *RouteRepository) RouteIDForStop(ctx context.Context, stopID uuid.UUID) (uuid.UUID, error) {
	var routeID uuid.UUID
	err := database.On(ctx, r.conn).
		QueryRow(ctx, `SELECT route_id FROM route_stops WHERE id = ?`, stopID).
		Scan(&routeID)
	if err != nil {
		if database.IsNoRows(err) {
			return uuid.Nil, domain.ErrStopNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve stop: %w", err)
	}
	return routeID, nil
}

// FindByDate lists the routes of one service day ordered by estimated start.
func (r *RouteRepository) FindByDate(ctx context.Context, date time.Time) ([]*domain.Route, error) {
	exec := database.On(ctx, r.conn)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	rows, err := exec.Query(ctx, `
		SELECT `+routeColumns+`
		FROM routes
		WHERE service_date = ?
		ORDER BY estimated_start, name`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	var routeRows []routeRow
	for rows.Next() {
		row, err := scanRoute(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routeRows = append(routeRows, row)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Children are loaded after closing: SQLite runs on a single connection.
	if err := rows.Close(); err != nil {
		return nil, err
	}

	routes := make([]*domain.Route, 0, len(routeRows))
	for _, row := range routeRows {
		route, err := r.assemble(ctx, exec, row)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// Delete removes the route; stops and flags cascade. A series that used the
// route as its template keeps existing without one.
func (r *RouteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	exec := database.On(ctx, r.conn)

	if _, err := exec.Exec(ctx, `UPDATE route_series SET template_route_id = NULL WHERE template_route_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach series: %w", err)
	}
	result, err := exec.Exec(ctx, `DELETE FROM routes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRouteNotFound
	}
	return nil
}

func (r *RouteRepository) assemble(ctx context.Context, exec database.Executor, row routeRow) (*domain.Route, error) {
	stops, err := r.loadStops(ctx, exec, row.ID)
	if err != nil {
		return nil, err
	}
	flags, err := loadFlags(ctx, exec, row.ID)
	if err != nil {
		return nil, err
	}

	status, err := domain.ParseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", row.ID, err)
	}

	return domain.RehydrateRoute(
		row.ID,
		row.Name,
		row.ServiceDate,
		nullable(row.DriverID),
		nullable(row.VehicleID),
		row.EstimatedStart.UTC(),
		row.EstimatedEnd.UTC(),
		utc(row.ActualStart),
		utc(row.ActualEnd),
		status,
		nullable(row.SeriesID),
		stops,
		flags,
		row.Version,
		row.CreatedAt.UTC(),
		row.UpdatedAt.UTC(),
	), nil
}

func (r *RouteRepository) loadStops(ctx context.Context, exec database.Executor, routeID uuid.UUID) ([]*domain.Stop, error) {
	rows, err := exec.Query(ctx, `SELECT `+stopColumns+` FROM route_stops WHERE route_id = ? ORDER BY position`, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	defer rows.Close()

	var stops []*domain.Stop
	for rows.Next() {
		var s stopRow
		if err := rows.Scan(
			&s.ID, &s.RouteID, &s.ChildID, &s.ScheduleID, &s.StopType, &s.Position,
			&s.AddressLine1, &s.AddressLine2, &s.City, &s.PostalCode, &s.AddressNotes,
			&s.GuardianName, &s.GuardianPhone,
			&s.EstimatedTime, &s.ActualTime, &s.CancelledAt, &s.CancelledBy, &s.CancelReason,
			&s.Outcome, &s.ExecutedAt, &s.ExecutedBy, &s.ExecutionNotes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		stop, err := r.rowToStop(s)
		if err != nil {
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

func (r *RouteRepository) rowToStop(s stopRow) (*domain.Stop, error) {
	phone, err := r.sealer.Open(s.GuardianPhone, sealBinding(s.ID))
	if err != nil {
		return nil, fmt.Errorf("guardian contact of stop %s: %w", s.ID, err)
	}

	var cancellation *domain.Cancellation
	if s.CancelledAt != nil {
		cancellation = &domain.Cancellation{
			Reason: deref(s.CancelReason),
			Actor:  s.CancelledBy.UUID,
			At:     s.CancelledAt.UTC(),
		}
	}
	var execution *domain.Execution
	if s.Outcome != nil {
		execution = &domain.Execution{
			Outcome: domain.Outcome(*s.Outcome),
			Actor:   s.ExecutedBy.UUID,
			Notes:   deref(s.ExecutionNotes),
		}
		if s.ExecutedAt != nil {
			execution.At = s.ExecutedAt.UTC()
		}
	}

	return domain.RehydrateStop(
		s.ID, s.RouteID, s.ChildID, s.ScheduleID,
		domain.StopType(s.StopType),
		s.Position,
		domain.Address{
			Line1:      s.AddressLine1,
			Line2:      s.AddressLine2,
			City:       s.City,
			PostalCode: s.PostalCode,
			Notes:      s.AddressNotes,
		},
		domain.GuardianContact{Name: s.GuardianName, Phone: phone},
		s.EstimatedTime.UTC(),
		utc(s.ActualTime),
		cancellation,
		execution,
	), nil
}

func loadFlags(ctx context.Context, exec database.Executor, routeID uuid.UUID) ([]*domain.ReviewFlag, error) {
	rows, err := exec.Query(ctx, `SELECT `+flagColumns+` FROM route_review_flags WHERE route_id = ? ORDER BY created_at`, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load review flags: %w", err)
	}
	defer rows.Close()

	var flags []*domain.ReviewFlag
	for rows.Next() {
		var f flagRow
		if err := rows.Scan(&f.ID, &f.RouteID, &f.StopID, &f.AbsenceID, &f.Reason, &f.CreatedAt, &f.ClearedAt, &f.ClearedBy); err != nil {
			return nil, fmt.Errorf("failed to scan review flag: %w", err)
		}
		flags = append(flags, domain.RehydrateReviewFlag(
			f.ID, f.RouteID, f.StopID, f.AbsenceID, f.Reason,
			f.CreatedAt.UTC(), utc(f.ClearedAt), nullable(f.ClearedBy),
		))
	}
	return flags, rows.Err()
}

func scanRoute(row database.Row) (routeRow, error) {
	var r routeRow
	err := row.Scan(
		&r.ID, &r.Name, &r.ServiceDate, &r.DriverID, &r.VehicleID,
		&r.EstimatedStart, &r.EstimatedEnd, &r.ActualStart, &r.ActualEnd,
		&r.Status, &r.SeriesID, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func nullable(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sealBinding(stopID uuid.UUID) []byte {
	return stopID[:]
}

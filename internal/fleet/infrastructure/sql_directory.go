package infrastructure

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/internal/fleet/domain"
	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/database"
)

// SQLDirectory reads drivers and vehicles from the local fleet tables.
type SQLDirectory struct {
	conn database.Connection
}

// NewSQLDirectory creates a directory on the given connection.
func NewSQLDirectory(conn database.Connection) *SQLDirectory {
	return &SQLDirectory{conn: conn}
}

var _ domain.Directory = (*SQLDirectory)(nil)

func (d *SQLDirectory) GetDriver(ctx context.Context, id uuid.UUID) (*domain.Driver, error) {
	var driver domain.Driver
	err := database.On(ctx, d.conn).
		QueryRow(ctx, `SELECT id, name, phone, active FROM drivers WHERE id = ?`, id).
		Scan(&driver.ID, &driver.Name, &driver.Phone, &driver.Active)
	if database.IsNoRows(err) {
		return nil, domain.ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load driver: %w", err)
	}
	return &driver, nil
}

func (d *SQLDirectory) GetVehicle(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	err := database.On(ctx, d.conn).
		QueryRow(ctx, `SELECT id, registration, capacity, wheelchair_accessible, active FROM vehicles WHERE id = ?`, id).
		Scan(&vehicle.ID, &vehicle.Registration, &vehicle.Capacity, &vehicle.WheelchairAccessible, &vehicle.Active)
	if database.IsNoRows(err) {
		return nil, domain.ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle: %w", err)
	}
	return &vehicle, nil
}

// SaveDriver inserts or replaces a driver record.
func (d *SQLDirectory) SaveDriver(ctx context.Context, driver domain.Driver) error {
	if err := driver.Validate(); err != nil {
		return err
	}
	_, err := database.On(ctx, d.conn).Exec(ctx, `
		INSERT INTO drivers (id, name, phone, active) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, phone = excluded.phone, active = excluded.active`,
		driver.ID, driver.Name, driver.Phone, driver.Active)
	if err != nil {
		return fmt.Errorf("failed to save driver: %w", err)
	}
	return nil
}

// SaveVehicle inserts or replaces a vehicle record.
func (d *SQLDirectory) SaveVehicle(ctx context.Context, vehicle domain.Vehicle) error {
	if err := vehicle.Validate(); err != nil {
		return err
	}
	_, err := database.On(ctx, d.conn).Exec(ctx, `
		INSERT INTO vehicles (id, registration, capacity, wheelchair_accessible, active) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET registration = excluded.registration, capacity = excluded.capacity,
			wheelchair_accessible = excluded.wheelchair_accessible, active = excluded.active`,
		vehicle.ID, vehicle.Registration, vehicle.Capacity, vehicle.WheelchairAccessible, vehicle.Active)
	if err != nil {
		return fmt.Errorf("failed to save vehicle: %w", err)
	}
	return nil
}

// ListDrivers returns every driver ordered by name.
func (d *SQLDirectory) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	rows, err := database.On(ctx, d.conn).Query(ctx, `SELECT id, name, phone, active FROM drivers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	defer rows.Close()

	var drivers []domain.Driver
	for rows.Next() {
		var driver domain.Driver
		if err := rows.Scan(&driver.ID, &driver.Name, &driver.Phone, &driver.Active); err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// ListVehicles returns every vehicle ordered by registration.
func (d *SQLDirectory) ListVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	rows, err := database.On(ctx, d.conn).Query(ctx,
		`SELECT id, registration, capacity, wheelchair_accessible, active FROM vehicles ORDER BY registration`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(&v.ID, &v.Registration, &v.Capacity, &v.WheelchairAccessible, &v.Active); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

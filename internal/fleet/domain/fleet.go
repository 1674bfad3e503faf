// Package domain holds the read model of drivers and vehicles that routes
// reference. Fleet records are owned elsewhere; this context only looks them up.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDriverNotFound  = fmt.Errorf("driver %w", ErrNotFound)
	ErrVehicleNotFound = fmt.Errorf("vehicle %w", ErrNotFound)
	ErrInactive        = errors.New("fleet record is inactive")
	ErrInvalidRecord   = errors.New("invalid fleet record")
)

// Driver is someone who can be assigned to a route.
type Driver struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Phone  string    `json:"phone,omitempty"`
	Active bool      `json:"active"`
}

// Validate checks the fields a directory must supply.
func (d Driver) Validate() error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("%w: driver id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: driver name is required", ErrInvalidRecord)
	}
	return nil
}

// Vehicle is a bus or van that can be assigned to a route.
type Vehicle struct {
	ID                   uuid.UUID `json:"id"`
	Registration         string    `json:"registration"`
	Capacity             int       `json:"capacity"`
	WheelchairAccessible bool      `json:"wheelchair_accessible"`
	Active               bool      `json:"active"`
}

func (v Vehicle) Validate() error {
	if v.ID == uuid.Nil {
		return fmt.Errorf("%w: vehicle id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(v.Registration) == "" {
		return fmt.Errorf("%w: vehicle registration is required", ErrInvalidRecord)
	}
	if v.Capacity < 0 {
		return fmt.Errorf("%w: vehicle capacity cannot be negative", ErrInvalidRecord)
	}
	return nil
}

// Directory resolves fleet references.
type Directory interface {
	GetDriver(ctx context.Context, id uuid.UUID) (*Driver, error)
	GetVehicle(ctx context.Context, id uuid.UUID) (*Vehicle, error)
}

// RequireActiveDriver looks up a driver and rejects inactive ones.
func RequireActiveDriver(ctx context.Context, dir Directory, id uuid.UUID) (*Driver, error) {
	driver, err := dir.GetDriver(ctx, id)
	if err != nil {
		return nil, err
	}
	if !driver.Active {
		return nil, fmt.Errorf("driver %s: %w", driver.Name, ErrInactive)
	}
	return driver, nil
}

// RequireActiveVehicle looks up a vehicle and rejects inactive ones.
func RequireActiveVehicle(ctx context.Context, dir Directory, id uuid.UUID) (*Vehicle, error) {
	vehicle, err := dir.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !vehicle.Active {
		return nil, fmt.Errorf("vehicle %s: %w", vehicle.Registration, ErrInactive)
	}
	return vehicle, nil
}

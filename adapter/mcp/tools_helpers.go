package mcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/adapter/cli"
)

var errNoDatabase = errors.New("route tools require a database connection")

func parseDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format, use YYYY-MM-DD: %w", err)
	}
	return parsed, nil
}

func parseOptionalTimestamp(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp, use RFC 3339: %w", err)
	}
	return &parsed, nil
}

func parseUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.UUID{}, errors.New("id is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

// expectedVersion maps the optional version input; zero means unchecked
// since stored routes start at version 1.
func expectedVersion(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

// ready returns the app when its container is wired.
func ready(app *cli.App) (*cli.App, error) {
	if app == nil || app.Container == nil {
		return nil, errNoDatabase
	}
	return app, nil
}

package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	internalApp "github.com/felixgeelhaar/convoy/internal/app"
)

// App holds the CLI application dependencies.
type App struct {
	*internalApp.Container

	// OperatorID is recorded as the actor on every change.
	OperatorID uuid.UUID
}

// NewApp wraps a container for the CLI.
func NewApp(container *internalApp.Container, operatorID uuid.UUID) *App {
	return &App{Container: container, OperatorID: operatorID}
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() (*App, error) {
	if app == nil || app.Container == nil {
		return nil, errors.New("application not initialized - database connection required")
	}
	return app, nil
}

// Actor returns the operator for a mutating command. The --operator flag
// wins over the configured operator.
func (a *App) Actor() (uuid.UUID, error) {
	if operator != "" {
		id, err := uuid.Parse(operator)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --operator: %w", err)
		}
		return id, nil
	}
	if a.OperatorID == uuid.Nil {
		return uuid.Nil, errors.New("no operator configured: set CONVOY_OPERATOR_ID or pass --operator")
	}
	return a.OperatorID, nil
}

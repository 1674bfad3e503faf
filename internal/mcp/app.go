package mcp

import (
	"github.com/google/uuid"

	"github.com/felixgeelhaar/convoy/adapter/cli"
	"github.com/felixgeelhaar/convoy/internal/app"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container, operator uuid.UUID) *cli.App {
	return cli.NewApp(container, operator)
}

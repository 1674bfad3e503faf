package application

import "context"

// Command is a request to change state.
type Command interface {
	CommandName() string
}

// CommandHandler executes one command type and returns the resulting view.
type CommandHandler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

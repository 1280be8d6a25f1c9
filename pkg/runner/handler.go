package runner

import (
	"context"

	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the result of one turn.
	Output(ctx context.Context, res *workflow.TurnResult) error

	// Input reads the next user message.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message to the user (e.g. errors, status updates).
	// This is distinct from assistant replies.
	SystemOutput(ctx context.Context, msg string) error
}

// Streamer is implemented by handlers that show reply text as it is generated.
type Streamer interface {
	// Sink returns where the next turn streams to, or nil to disable streaming.
	Sink() respond.Sink
}

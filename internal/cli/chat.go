package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aretw0/orderbot/internal/presentation/tui"
	"github.com/aretw0/orderbot/pkg/runner"
)

// ChatOptions configures an interactive conversation.
type ChatOptions struct {
	SessionID string
	UserName  string
	// JSON switches to NDJSON input and output.
	JSON bool
	// Renderer formats whole replies (markdown). Without one replies stream.
	Renderer runner.ContentRenderer

	In  io.Reader
	Out io.Writer
}

// RunChat drives one conversation on the terminal until it ends, the input
// closes, or the process is interrupted.
func RunChat(ctx context.Context, engine runner.Engine, logger *slog.Logger, opts ChatOptions) error {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	} else {
		tui.PrintBanner(opts.Out)
		textOpts := []runner.TextHandlerOption{runner.WithTextHandlerStreaming(true)}
		if opts.Renderer != nil {
			textOpts = append(textOpts, runner.WithTextHandlerRenderer(opts.Renderer))
		}
		handler = runner.NewTextHandler(opts.In, opts.Out, textOpts...)
		tui.Hint(opts.Out, "Type 'exit' to leave; the conversation can be resumed with --session.")
	}

	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithInputHandler(handler),
		runner.WithSessionID(opts.SessionID),
		runner.WithUserName(opts.UserName),
	)

	logger.Info("chat started", "session_id", opts.SessionID)
	if err := r.Run(ctx, engine); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	if !opts.JSON {
		printSystemMessage(opts.Out, "Session %s saved.", opts.SessionID)
	}
	return nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/workflow"
)

// Engine is the part of the dialogue engine the runner drives.
type Engine interface {
	Start(ctx context.Context, sessionID, userName string, sink respond.Sink) (*workflow.TurnResult, error)
	Resume(ctx context.Context, sessionID, input string, sink respond.Sink) (*workflow.TurnResult, error)
	State(ctx context.Context, sessionID string) (*domain.ConversationState, error)
}

// Runner handles the read-eval loop of a conversation using the provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on Stdin/Stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// SessionID is the session to open or resume.
	SessionID string

	// UserName is passed to the engine when a new session starts.
	UserName string

	// ExitWords end the loop without touching the session.
	ExitWords []string
}

// NewRunner creates a Runner. Without options it talks to Stdin/Stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger:    logging.NewNop(),
		ExitWords: []string{"exit", "quit"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run opens or resumes the session and loops until the user leaves, the input
// ends, the process is interrupted, or the session terminates. Leaving early
// keeps the checkpoint, so a later Run with the same session id resumes it.
func (r *Runner) Run(ctx context.Context, engine Engine) error {
	handler := r.resolveHandler()
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}

	signals := NewSignalManager(ctx)
	defer signals.Stop()

	done, err := r.open(signals.Context(), engine, handler)
	if err != nil || done {
		return err
	}

	for {
		turnCtx := signals.Context()

		text, err := handler.Input(turnCtx)
		if err != nil {
			signals.CheckRace()
			switch {
			case turnCtx.Err() != nil:
				r.Logger.Debug("runner input cancelled", "session_id", r.SessionID, "err", turnCtx.Err())
				return nil
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, ErrInputTooLarge), errors.Is(err, ErrInvalidUTF8):
				_ = handler.SystemOutput(turnCtx, fmt.Sprintf("Error: %v. Please try again.", err))
				continue
			}
			return fmt.Errorf("input error: %w", err)
		}

		if r.isExit(text) {
			return nil
		}

		res, err := engine.Resume(turnCtx, r.SessionID, text, sinkOf(handler))
		if err != nil {
			if turnCtx.Err() != nil {
				return nil
			}
			if retryable(err) {
				r.Logger.Warn("turn failed", "session_id", r.SessionID, "err", err)
				_ = handler.SystemOutput(turnCtx, fmt.Sprintf("Error: %v. Please try again.", err))
				continue
			}
			return err
		}

		if err := handler.Output(turnCtx, res); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		if res.Status == domain.StatusTerminated {
			return nil
		}
	}
}

// open starts a new session or announces a resumed one. done is true when
// there is nothing left to do.
func (r *Runner) open(ctx context.Context, engine Engine, handler IOHandler) (done bool, err error) {
	st, err := engine.State(ctx, r.SessionID)
	switch {
	case err == nil:
		if st.Terminated() {
			_ = handler.SystemOutput(ctx, fmt.Sprintf("Session %s has already ended.", r.SessionID))
			return true, nil
		}
		r.Logger.Debug("resuming session", "session_id", r.SessionID, "node", st.CurrentNode)
		_ = handler.SystemOutput(ctx, fmt.Sprintf("Resuming session %s (%d items in cart).", r.SessionID, len(st.Cart)))
		return false, nil
	case !errors.Is(err, domain.ErrSessionNotFound):
		return true, fmt.Errorf("failed to load session %s: %w", r.SessionID, err)
	}

	res, err := engine.Start(ctx, r.SessionID, r.UserName, sinkOf(handler))
	if err != nil {
		return true, fmt.Errorf("failed to start session %s: %w", r.SessionID, err)
	}
	if err := handler.Output(ctx, res); err != nil {
		return true, fmt.Errorf("output error: %w", err)
	}
	return res.Status == domain.StatusTerminated, nil
}

func (r *Runner) isExit(text string) bool {
	for _, w := range r.ExitWords {
		if strings.EqualFold(text, w) {
			return true
		}
	}
	return false
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}

func sinkOf(h IOHandler) respond.Sink {
	if s, ok := h.(Streamer); ok {
		return s.Sink()
	}
	return nil
}

// retryable errors leave the checkpoint as it was, so the user can simply try again.
func retryable(err error) bool {
	return errors.Is(err, domain.ErrGenerationFailed) ||
		errors.Is(err, domain.ErrSessionBusy) ||
		errors.Is(err, domain.ErrVersionConflict) ||
		errors.Is(err, domain.ErrStoreUnavailable) ||
		errors.Is(err, domain.ErrCatalogUnavailable)
}

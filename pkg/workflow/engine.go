package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/ports"
	"github.com/aretw0/orderbot/pkg/respond"
	"github.com/aretw0/orderbot/pkg/session"
)

const tracerName = "github.com/aretw0/orderbot/pkg/workflow"

// IntentExtractor classifies the latest user input. It never fails.
type IntentExtractor interface {
	Extract(ctx context.Context, transcript []domain.Turn, latest string, catalog domain.CatalogIndex) domain.ExtractedIntent
}

// ResponseGenerator produces a reply for a branch instruction.
type ResponseGenerator interface {
	Generate(ctx context.Context, transcript []domain.Turn, instruction domain.Turn, sink respond.Sink) (string, []domain.Turn, error)
}

// TurnRequest is one call into the engine.
type TurnRequest struct {
	SessionID string
	// Start opens a new session. The session id must not have a checkpoint yet.
	Start bool
	// Input is the external input for a resumed turn. Nil is treated as empty.
	Input *string
	// UserName is used on Start; the engine default applies when empty.
	UserName string
	// IdempotencyKey identifies a resumed turn. Repeating the key of the last
	// committed turn returns its replies without running anything.
	IdempotencyKey string
	// Sink receives reply text as it streams. May be nil.
	Sink respond.Sink
}

// TurnResult is what a committed (or replayed) turn returns.
type TurnResult struct {
	SessionID string
	Status    domain.TurnStatus
	Messages  []string
	Cart      []domain.CartLine
	Intent    domain.Intent
	Diff      *domain.StateDiff
	Replayed  bool
}

// Engine is the dialogue state machine runner.
type Engine struct {
	sessions  *session.Manager
	catalog   ports.CatalogService
	extractor IntentExtractor
	generator ResponseGenerator
	publisher ports.CheckoutPublisher

	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	tracer      trace.Tracer
	defaultUser string
	now         func() time.Time
}

// New creates an Engine. Checkpoints go to the store behind sessions.
func New(sessions *session.Manager, catalog ports.CatalogService, extractor IntentExtractor, generator ResponseGenerator, opts ...Option) *Engine {
	e := &Engine{
		sessions:    sessions,
		catalog:     catalog,
		extractor:   extractor,
		generator:   generator,
		logger:      logging.NewNop(),
		tracer:      otel.GetTracerProvider().Tracer(tracerName),
		defaultUser: "Lê Hoàng",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens sessionID and returns the greeting turn.
func (e *Engine) Start(ctx context.Context, sessionID, userName string, sink respond.Sink) (*TurnResult, error) {
	return e.Advance(ctx, TurnRequest{SessionID: sessionID, Start: true, UserName: userName, Sink: sink})
}

// Resume delivers input to a suspended session.
func (e *Engine) Resume(ctx context.Context, sessionID, input string, sink respond.Sink) (*TurnResult, error) {
	return e.Advance(ctx, TurnRequest{SessionID: sessionID, Input: &input, Sink: sink})
}

// State loads the current checkpoint of a session.
func (e *Engine) State(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	st, err := e.sessions.Store().Load(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return st, err
}

// Sessions returns the session manager the engine serialises turns with.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Advance runs one turn. A second concurrent turn for the same session is
// rejected with domain.ErrSessionBusy. On any error the stored checkpoint is
// left exactly as it was before the call.
func (e *Engine) Advance(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.SessionID == "" {
		return nil, domain.ErrEmptySessionID
	}

	began := e.now()
	ctx, span := e.tracer.Start(ctx, "orderbot.turn",
		trace.WithAttributes(
			attribute.String("session.id", req.SessionID),
			attribute.Bool("turn.start", req.Start),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	var res *TurnResult
	err := e.sessions.TryWithLock(ctx, req.SessionID, func(ctx context.Context) error {
		var err error
		res, err = e.advanceLocked(ctx, req)
		return err
	})

	ev := &domain.TurnEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), SessionID: req.SessionID},
		Duration:  e.now().Sub(began),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()

		ev.Type = domain.EventTurnFailed
		ev.Err = err
		if e.hooks.OnTurnFailed != nil {
			e.hooks.OnTurnFailed(ctx, ev)
		}
		e.logger.Warn("turn failed", "session_id", req.SessionID, "err", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("turn.status", string(res.Status)),
		attribute.String("turn.intent", string(res.Intent)),
		attribute.Bool("turn.replayed", res.Replayed),
	)
	span.SetStatus(codes.Ok, "")
	span.End()

	ev.Type = domain.EventTurnCommit
	ev.Status = res.Status
	ev.Intent = res.Intent
	ev.Replayed = res.Replayed
	if res.Diff != nil {
		ev.CartAdded = len(res.Diff.Cart)
	}
	if e.hooks.OnTurnCommit != nil {
		e.hooks.OnTurnCommit(ctx, ev)
	}
	e.logger.Debug("turn committed",
		"session_id", req.SessionID,
		"status", res.Status,
		"intent", res.Intent,
		"replayed", res.Replayed,
	)
	return res, nil
}

func (e *Engine) advanceLocked(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	store := e.sessions.Store()

	prev, err := store.Load(ctx, req.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSessionNotFound):
		prev = nil
	default:
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	if prev != nil && req.IdempotencyKey != "" && prev.LastTurn != nil && prev.LastTurn.Key == req.IdempotencyKey {
		return replay(prev), nil
	}

	var st *domain.ConversationState
	if req.Start {
		if prev != nil {
			return nil, domain.ErrSessionExists
		}
		name := strings.TrimSpace(req.UserName)
		if name == "" {
			name = e.defaultUser
		}
		st = domain.NewConversationState(req.SessionID, name)
		st.CreatedAt = e.now()
	} else {
		if prev == nil {
			return nil, domain.ErrSessionNotFound
		}
		if prev.Terminated() {
			return nil, domain.ErrSessionTerminated
		}
		var input string
		if req.Input != nil {
			input = *req.Input
		}
		st = prev.Clone()
		st.PendingInput = &input
	}

	t := &turn{sink: req.Sink}
	status, err := e.run(ctx, st, t)
	if err != nil {
		return nil, err
	}

	var version int64
	if prev != nil {
		version = prev.Version
	}
	st.Status = status
	st.Version = version + 1
	st.UpdatedAt = e.now()
	st.LastTurn = &domain.TurnRecord{Key: req.IdempotencyKey, Messages: t.messages, Status: status}

	if err := store.Save(ctx, req.SessionID, st); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	if status == domain.StatusTerminated && len(st.Cart) > 0 {
		e.publishCheckout(ctx, st)
	}

	return &TurnResult{
		SessionID: st.SessionID,
		Status:    status,
		Messages:  t.messages,
		Cart:      st.Cart,
		Intent:    st.LastIntent,
		Diff:      domain.Diff(prev, st),
	}, nil
}

// run advances st until it suspends or terminates.
func (e *Engine) run(ctx context.Context, st *domain.ConversationState, t *turn) (domain.TurnStatus, error) {
	for {
		node := st.CurrentNode
		switch {
		case node == domain.NodeEnd:
			return domain.StatusTerminated, nil
		case node == domain.NodeAwaitInput && st.PendingInput == nil:
			return domain.StatusSuspended, nil
		}

		ev, err := e.runNode(ctx, st, node, t)
		if err != nil {
			return "", err
		}
		next, ok := Next(node, ev)
		if !ok {
			return "", fmt.Errorf("no transition from %s on %q", node, ev)
		}
		st.CurrentNode = next
	}
}

func (e *Engine) runNode(ctx context.Context, st *domain.ConversationState, node domain.NodeID, t *turn) (domain.Event, error) {
	ctx, span := e.tracer.Start(ctx, "orderbot.node."+string(node),
		trace.WithAttributes(attribute.String("node.id", string(node))),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeEnter, SessionID: st.SessionID},
			NodeID:    node,
		})
	}

	handler, ok := e.handlers()[node]
	var (
		ev  domain.Event
		err error
	)
	if !ok {
		err = fmt.Errorf("no handler for node %s", node)
	} else {
		ev, err = handler(ctx, st, t)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("node.event", string(ev)))
	}
	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeLeave, SessionID: st.SessionID},
			NodeID:    node,
			Event:     ev,
			Err:       err,
		})
	}
	return ev, err
}

func (e *Engine) publishCheckout(ctx context.Context, st *domain.ConversationState) {
	if e.publisher == nil {
		return
	}
	event := ports.CheckoutEvent{
		SessionID: st.SessionID,
		UserName:  st.UserName,
		Lines:     st.Cart,
		Total:     domain.CartTotal(st.Cart),
		At:        e.now(),
	}
	err := e.publisher.PublishCheckout(ctx, event)
	if err != nil {
		e.logger.Error("checkout publish failed", "session_id", st.SessionID, "err", err)
	}
	if e.hooks.OnCheckout != nil {
		e.hooks.OnCheckout(ctx, &domain.TurnEvent{
			EventBase: domain.EventBase{Timestamp: event.At, Type: domain.EventCheckout, SessionID: st.SessionID},
			Status:    domain.StatusTerminated,
			Intent:    st.LastIntent,
			Err:       err,
		})
	}
}

func replay(st *domain.ConversationState) *TurnResult {
	return &TurnResult{
		SessionID: st.SessionID,
		Status:    st.LastTurn.Status,
		Messages:  append([]string(nil), st.LastTurn.Messages...),
		Cart:      st.Cart,
		Intent:    st.LastIntent,
		Replayed:  true,
	}
}

package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/orderbot/pkg/domain"
)

// Hooks returns lifecycle hooks that log through logger and, when m is not
// nil, update its collectors.
func Hooks(logger *slog.Logger, m *Metrics) domain.LifecycleHooks {
	hooks := LoggingHooks(logger)
	if m != nil {
		hooks = hooks.Merge(m.Hooks())
	}
	return hooks
}

// LoggingHooks logs node transitions at debug level and turn outcomes at info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "session_id", e.SessionID, "node", e.NodeID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "node_leave", "session_id", e.SessionID, "node", e.NodeID, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "node_leave", "session_id", e.SessionID, "node", e.NodeID, "event", e.Event)
		},
		OnTurnCommit: func(ctx context.Context, e *domain.TurnEvent) {
			logger.InfoContext(ctx, "turn_commit",
				"session_id", e.SessionID,
				"status", e.Status,
				"intent", e.Intent,
				"cart_added", e.CartAdded,
				"replayed", e.Replayed,
				"duration", e.Duration,
			)
		},
		OnTurnFailed: func(ctx context.Context, e *domain.TurnEvent) {
			logger.WarnContext(ctx, "turn_failed", "session_id", e.SessionID, "err", e.Err, "duration", e.Duration)
		},
		OnCheckout: func(ctx context.Context, e *domain.TurnEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "checkout_failed", "session_id", e.SessionID, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "checkout", "session_id", e.SessionID)
		},
	}
}

// Hooks returns lifecycle hooks that only update m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.NodeID)).Inc()
		},
		OnTurnCommit: func(_ context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(string(e.Status)).Inc()
			m.TurnDuration.Observe(e.Duration.Seconds())
			if e.Replayed {
				return
			}
			if e.Intent != "" {
				m.Intents.WithLabelValues(string(e.Intent)).Inc()
			}
			m.CartLines.Add(float64(e.CartAdded))
		},
		OnTurnFailed: func(_ context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues("failed").Inc()
			m.TurnDuration.Observe(e.Duration.Seconds())
		},
		OnCheckout: func(_ context.Context, e *domain.TurnEvent) {
			outcome := OutcomeOK
			if e.Err != nil {
				outcome = OutcomeError
			}
			m.Checkouts.WithLabelValues(outcome).Inc()
		},
	}
}

package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter  EventType = "node_enter"
	EventNodeLeave  EventType = "node_leave"
	EventTurnCommit EventType = "turn_commit"
	EventTurnFailed EventType = "turn_failed"
	EventCheckout   EventType = "checkout"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID NodeID `json:"node_id"`
	// Event is set on leave: the edge the node selected.
	Event Event `json:"event,omitempty"`
	Err   error `json:"-"`
}

// TurnEvent represents the end of a turn, committed or not.
type TurnEvent struct {
	EventBase
	Status    TurnStatus    `json:"status,omitempty"`
	Intent    Intent        `json:"intent,omitempty"`
	CartAdded int           `json:"cart_added"`
	Duration  time.Duration `json:"duration"`
	Replayed  bool          `json:"replayed,omitempty"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnTurnCommit func(context.Context, *TurnEvent)
	OnTurnFailed func(context.Context, *TurnEvent)
	// OnCheckout fires after a checkout event was handed to the publisher.
	// Err is set when publishing failed.
	OnCheckout func(context.Context, *TurnEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:  chainNode(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:  chainNode(h.OnNodeLeave, other.OnNodeLeave),
		OnTurnCommit: chainTurn(h.OnTurnCommit, other.OnTurnCommit),
		OnTurnFailed: chainTurn(h.OnTurnFailed, other.OnTurnFailed),
		OnCheckout:   chainTurn(h.OnCheckout, other.OnCheckout),
	}
}

func chainNode(a, b func(context.Context, *NodeEvent)) func(context.Context, *NodeEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainTurn(a, b func(context.Context, *TurnEvent)) func(context.Context, *TurnEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *TurnEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

package ports

import (
	"context"
	"time"

	"github.com/aretw0/orderbot/pkg/domain"
)

// CheckoutEvent is emitted when a session ends with a non-empty cart.
type CheckoutEvent struct {
	SessionID string            `json:"session_id"`
	UserName  string            `json:"user_name"`
	Lines     []domain.CartLine `json:"lines"`
	Total     int64             `json:"total"`
	At        time.Time         `json:"at"`
}

// CheckoutPublisher hands a finished cart to whoever fulfils orders.
type CheckoutPublisher interface {
	PublishCheckout(ctx context.Context, event CheckoutEvent) error
}

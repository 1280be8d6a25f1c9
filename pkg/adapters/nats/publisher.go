package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/nats-io/nats.go"

	"github.com/aretw0/orderbot/pkg/ports"
)

const flushTimeout = 5 * time.Second

// Publisher implements ports.CheckoutPublisher.
type Publisher struct {
	conn    *backend.Conn
	subject string
}

// NewPublisher publishes to subject, or DefaultCheckoutSubject when empty.
func NewPublisher(conn *backend.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultCheckoutSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// PublishCheckout sends the event and flushes so a failure is reported to the caller.
func (p *Publisher) PublishCheckout(ctx context.Context, event ports.CheckoutEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		return p.conn.FlushTimeout(flushTimeout)
	}
	return p.conn.FlushWithContext(ctx)
}

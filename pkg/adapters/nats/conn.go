// Package nats carries catalog lookups and checkout notifications over NATS.
//
// The catalog is served request/reply: a Responder in front of any
// ports.CatalogService answers on the catalog subjects, and CatalogClient
// implements ports.CatalogService by sending requests to them. Publisher
// implements ports.CheckoutPublisher as a fire-and-forget publish.
package nats

import (
	"fmt"
	"time"

	backend "github.com/nats-io/nats.go"
)

// Catalog subjects. Each takes a JSON catalogRequest and answers a catalogResponse.
const (
	SubjectActiveItems     = "catalog.items.active"
	SubjectDiscountedItems = "catalog.items.discounted"
	SubjectGetItem         = "catalog.items.get"

	// DefaultCheckoutSubject receives ports.CheckoutEvent payloads.
	DefaultCheckoutSubject = "orders.checkout"

	responderQueue = "orderbot-catalog"
)

// Connect dials the server with reconnect settings suited to a long-lived service.
func Connect(url, name string, timeout time.Duration) (*backend.Conn, error) {
	conn, err := backend.Connect(url,
		backend.Name(name),
		backend.Timeout(timeout),
		backend.ReconnectWait(2*time.Second),
		backend.MaxReconnects(-1), // Infinite reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/nats-io/nats.go"

	"github.com/aretw0/orderbot/internal/logging"
	"github.com/aretw0/orderbot/pkg/ports"
)

// Responder answers catalog requests from a local CatalogService.
type Responder struct {
	conn    *backend.Conn
	catalog ports.CatalogService
	logger  *slog.Logger
	timeout time.Duration
	subs    []*backend.Subscription
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithLogger sets the responder logger.
func WithLogger(l *slog.Logger) ResponderOption {
	return func(r *Responder) { r.logger = l }
}

// WithHandlerTimeout bounds each catalog lookup.
func WithHandlerTimeout(d time.Duration) ResponderOption {
	return func(r *Responder) { r.timeout = d }
}

// NewResponder creates a responder; call Start to subscribe.
func NewResponder(conn *backend.Conn, catalog ports.CatalogService, opts ...ResponderOption) *Responder {
	r := &Responder{
		conn:    conn,
		catalog: catalog,
		logger:  logging.NewNop(),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to the catalog subjects in a shared queue group so
// several responders can split the load.
func (r *Responder) Start() error {
	for _, subject := range []string{SubjectActiveItems, SubjectDiscountedItems, SubjectGetItem} {
		sub, err := r.conn.QueueSubscribe(subject, responderQueue, r.handleMsg)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
		r.logger.Info("subscribed", "subject", subject)
	}
	return nil
}

// Close drains the subscriptions.
func (r *Responder) Close() error {
	for _, sub := range r.subs {
		if err := sub.Drain(); err != nil {
			return err
		}
	}
	r.subs = nil
	return nil
}

func (r *Responder) handleMsg(msg *backend.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := msg.Respond(r.handle(ctx, msg.Subject, msg.Data)); err != nil {
		r.logger.Error("failed to send response", "subject", msg.Subject, "err", err)
	}
}

// handle maps a request payload to a response payload. It never fails:
// errors travel back in the response body.
func (r *Responder) handle(ctx context.Context, subject string, data []byte) []byte {
	var (
		req  catalogRequest
		resp catalogResponse
		err  error
	)
	if len(data) > 0 {
		if jerr := json.Unmarshal(data, &req); jerr != nil {
			return encode(catalogResponse{Error: "invalid request format"})
		}
	}

	switch subject {
	case SubjectActiveItems:
		resp.Items, err = r.catalog.ListActiveItems(ctx)
	case SubjectDiscountedItems:
		resp.Items, err = r.catalog.ListDiscountedItems(ctx)
	case SubjectGetItem:
		it, found, gerr := r.catalog.GetItemByID(ctx, req.ID)
		err = gerr
		if found {
			resp.Item = &it
			resp.Found = true
		}
	default:
		err = fmt.Errorf("unknown subject %q", subject)
	}

	if err != nil {
		r.logger.Error("catalog lookup failed", "subject", subject, "err", err)
		return encode(catalogResponse{Error: err.Error()})
	}
	return encode(resp)
}

func encode(resp catalogResponse) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(catalogResponse{Error: err.Error()})
	}
	return data
}

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/nats-io/nats.go"

	"github.com/aretw0/orderbot/pkg/domain"
)

// CatalogClient implements ports.CatalogService over request/reply.
type CatalogClient struct {
	conn    *backend.Conn
	timeout time.Duration
}

// NewCatalogClient uses timeout for each request that has no earlier context deadline.
func NewCatalogClient(conn *backend.Conn, timeout time.Duration) *CatalogClient {
	return &CatalogClient{conn: conn, timeout: timeout}
}

// ListActiveItems implements ports.CatalogService.
func (c *CatalogClient) ListActiveItems(ctx context.Context) ([]domain.MenuItem, error) {
	resp, err := c.request(ctx, SubjectActiveItems, catalogRequest{})
	if err != nil {
		return nil, err
	}
	return normalizeAll(resp.Items)
}

// ListDiscountedItems implements ports.CatalogService.
func (c *CatalogClient) ListDiscountedItems(ctx context.Context) ([]domain.MenuItem, error) {
	resp, err := c.request(ctx, SubjectDiscountedItems, catalogRequest{})
	if err != nil {
		return nil, err
	}
	return normalizeAll(resp.Items)
}

// GetItemByID implements ports.CatalogService.
func (c *CatalogClient) GetItemByID(ctx context.Context, id int) (domain.MenuItem, bool, error) {
	resp, err := c.request(ctx, SubjectGetItem, catalogRequest{ID: id})
	if err != nil {
		return domain.MenuItem{}, false, err
	}
	if !resp.Found || resp.Item == nil {
		return domain.MenuItem{}, false, nil
	}
	it, err := resp.Item.Normalize()
	if err != nil {
		return domain.MenuItem{}, false, err
	}
	return it, true, nil
}

func (c *CatalogClient) request(ctx context.Context, subject string, req catalogRequest) (*catalogResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", subject, err)
	}
	return decodeResponse(msg.Data)
}

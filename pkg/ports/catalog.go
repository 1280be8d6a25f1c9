package ports

import (
	"context"

	"github.com/aretw0/orderbot/pkg/domain"
)

// CatalogService is the read-only view of the external catalog.
// Results are treated as snapshots taken once per session start.
type CatalogService interface {
	ListActiveItems(ctx context.Context) ([]domain.MenuItem, error)
	ListDiscountedItems(ctx context.Context) ([]domain.MenuItem, error)
	// GetItemByID returns found=false, with a nil error, when the id is unknown.
	GetItemByID(ctx context.Context, id int) (item domain.MenuItem, found bool, err error)
}

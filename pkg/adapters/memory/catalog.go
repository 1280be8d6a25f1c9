package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/orderbot/pkg/domain"
)

// Catalog serves a fixed list of menu items.
// It backs tests and the YAML catalog file, which loads into one.
type Catalog struct {
	items []domain.MenuItem
	index domain.CatalogIndex
}

// NewCatalog validates and normalises items. Every item is treated as active.
func NewCatalog(items []domain.MenuItem) (*Catalog, error) {
	normalized := make([]domain.MenuItem, 0, len(items))
	seen := make(map[int]bool, len(items))
	for _, it := range items {
		if seen[it.ID] {
			return nil, fmt.Errorf("duplicate item id %d", it.ID)
		}
		seen[it.ID] = true

		n, err := it.Normalize()
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, n)
	}
	return &Catalog{items: normalized, index: domain.NewCatalogIndex(normalized)}, nil
}

// ListActiveItems returns a copy of all items.
func (c *Catalog) ListActiveItems(ctx context.Context) ([]domain.MenuItem, error) {
	return append([]domain.MenuItem(nil), c.items...), nil
}

// ListDiscountedItems returns the items with a positive discount.
func (c *Catalog) ListDiscountedItems(ctx context.Context) ([]domain.MenuItem, error) {
	return domain.DiscountedOnly(c.items), nil
}

// GetItemByID looks an item up by id.
func (c *Catalog) GetItemByID(ctx context.Context, id int) (domain.MenuItem, bool, error) {
	it, ok := c.index.Lookup(id)
	return it, ok, nil
}

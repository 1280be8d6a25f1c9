package domain

import (
	"fmt"
	"sort"
	"strings"
)

// MenuItem is a catalog entry as seen by the dialogue.
// Price is in the smallest currency unit; Discount is a fraction in [0,1].
type MenuItem struct {
	ID         int      `json:"id" yaml:"id"`
	Title      string   `json:"title" yaml:"title"`
	Price      int64    `json:"price" yaml:"price"`
	Discount   float64  `json:"discount" yaml:"discount"`
	Categories []string `json:"categories,omitempty" yaml:"categories"`
	Flavours   []string `json:"flavours,omitempty" yaml:"flavours"`
}

// HasDiscount reports whether the item is currently discounted.
func (m MenuItem) HasDiscount() bool {
	return m.Discount > 0
}

// CatalogIndex is a read-only lookup over a catalog snapshot.
type CatalogIndex struct {
	byID map[int]MenuItem
}

// NewCatalogIndex indexes items by ID. Later duplicates win.
func NewCatalogIndex(items []MenuItem) CatalogIndex {
	idx := CatalogIndex{byID: make(map[int]MenuItem, len(items))}
	for _, it := range items {
		idx.byID[it.ID] = it
	}
	return idx
}

// Lookup returns the item with the given id, if present.
func (c CatalogIndex) Lookup(id int) (MenuItem, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// Len returns the number of indexed items.
func (c CatalogIndex) Len() int {
	return len(c.byID)
}

// Items returns the indexed items ordered by ID.
func (c CatalogIndex) Items() []MenuItem {
	out := make([]MenuItem, 0, len(c.byID))
	for _, it := range c.byID {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NormalizeDiscount converts a raw catalog discount into a fraction.
// Values in (1,100] are read as whole percentages; negatives clamp to 0.
func NormalizeDiscount(raw float64) (float64, error) {
	switch {
	case raw <= 0:
		return 0, nil
	case raw <= 1:
		return raw, nil
	case raw <= 100:
		return raw / 100, nil
	default:
		return 0, fmt.Errorf("discount %v out of range", raw)
	}
}

// Normalize validates an item loaded from an external source and applies the
// fraction discount convention.
func (m MenuItem) Normalize() (MenuItem, error) {
	if strings.TrimSpace(m.Title) == "" {
		return m, fmt.Errorf("item %d: empty title", m.ID)
	}
	if m.Price < 0 {
		return m, fmt.Errorf("item %d: negative price", m.ID)
	}
	d, err := NormalizeDiscount(m.Discount)
	if err != nil {
		return m, fmt.Errorf("item %d: %w", m.ID, err)
	}
	m.Discount = d
	return m, nil
}

// DiscountedOnly filters items with a positive discount, keeping order.
func DiscountedOnly(items []MenuItem) []MenuItem {
	out := make([]MenuItem, 0, len(items))
	for _, it := range items {
		if it.HasDiscount() {
			out = append(out, it)
		}
	}
	return out
}

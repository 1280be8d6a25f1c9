package testutils

import (
	"github.com/aretw0/orderbot/pkg/domain"
)

// ScenarioItems is the two-item menu used across the dialogue tests.
func ScenarioItems() []domain.MenuItem {
	return []domain.MenuItem{
		{ID: 1, Title: "Phở", Price: 50000, Categories: []string{"main_dish"}, Flavours: []string{"salty"}},
		{ID: 2, Title: "Bánh mì", Price: 20000, Discount: 0.1, Categories: []string{"snack"}},
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/orderbot/pkg/adapters/memory"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	cat, err := memory.NewCatalog([]domain.MenuItem{
		{ID: 1, Title: "Phở", Price: 50000},
		{ID: 2, Title: "Bánh mì", Price: 20000, Discount: 10},
	})
	require.NoError(t, err)

	active, err := cat.ListActiveItems(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	discounted, err := cat.ListDiscountedItems(ctx)
	require.NoError(t, err)
	require.Len(t, discounted, 1)
	assert.Equal(t, "Bánh mì", discounted[0].Title)
	assert.InDelta(t, 0.1, discounted[0].Discount, 1e-9, "whole percentages become fractions")

	it, found, err := cat.GetItemByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Phở", it.Title)

	_, found, err = cat.GetItemByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCatalog_Invalid(t *testing.T) {
	_, err := memory.NewCatalog([]domain.MenuItem{{ID: 1, Title: "a"}, {ID: 1, Title: "b"}})
	assert.ErrorContains(t, err, "duplicate")

	_, err = memory.NewCatalog([]domain.MenuItem{{ID: 1, Title: "a", Discount: 250}})
	assert.Error(t, err)
}

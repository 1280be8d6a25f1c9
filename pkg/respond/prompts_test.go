package respond

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/orderbot/internal/testutils"
	"github.com/aretw0/orderbot/pkg/domain"
)

func TestFormatMenu(t *testing.T) {
	got := FormatMenu(testutils.ScenarioItems())
	assert.Contains(t, got, "- id: 1\n  title: Phở\n  price: 50000\n  discount: none\n  category: main_dish\n  flavour: salty")
	assert.Contains(t, got, "  title: Bánh mì\n  price: 20000\n  discount: 10%")
}

func TestSystemPrompt(t *testing.T) {
	items := testutils.ScenarioItems()
	got := SystemPrompt(items, domain.DiscountedOnly(items))
	assert.Contains(t, got, "Bạn là một trợ lý bán đồ ăn.")
	assert.Contains(t, got, "Các món đang giảm giá:\nMenu items:\n- id: 2")
}

func TestGreetInstruction(t *testing.T) {
	turn := GreetInstruction("Lê Hoàng", domain.DiscountedOnly(testutils.ScenarioItems()))
	assert.Equal(t, domain.RoleSystem, turn.Role)
	assert.Contains(t, turn.Content, "Người dùng tên là Lê Hoàng.")
	assert.Contains(t, turn.Content, "Các món đang giảm giá: Bánh mì.")
}

func TestCheckoutInstruction(t *testing.T) {
	empty := CheckoutInstruction(nil)
	assert.Contains(t, empty.Content, "Chào tạm biệt")

	lines := []domain.CartLine{{ItemID: 1, Title: "Phở", UnitPrice: 50000, Quantity: 2}}
	full := CheckoutInstruction(lines)
	assert.Contains(t, full.Content, "- Phở (ID:1): 2 x 50,000đ = 100,000đ")
	assert.Contains(t, full.Content, "Với tổng tiền là 100,000đ")
	assert.Contains(t, full.Content, "GIỎ HÀNG")
}

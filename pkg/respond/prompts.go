package respond

import (
	"fmt"
	"strings"

	"github.com/aretw0/orderbot/pkg/cart"
	"github.com/aretw0/orderbot/pkg/domain"
)

const persona = `Bạn là một trợ lý bán đồ ăn. Luôn giữ phong cách lịch sự, thân thiện.

Danh sách tất cả món hiện có:
%s

Các món đang giảm giá:
%s
`

// SystemPrompt opens the user-facing transcript with the persona and both menus.
func SystemPrompt(all, discounted []domain.MenuItem) string {
	return fmt.Sprintf(persona, FormatMenu(all), FormatMenu(discounted))
}

// FormatMenu renders items in the block layout the assistant is prompted with.
func FormatMenu(items []domain.MenuItem) string {
	lines := []string{"Menu items:"}
	for _, it := range items {
		discount := "none"
		if it.HasDiscount() {
			discount = fmt.Sprintf("%d%%", int(it.Discount*100+0.5))
		}
		lines = append(lines,
			fmt.Sprintf("- id: %d", it.ID),
			fmt.Sprintf("  title: %s", it.Title),
			fmt.Sprintf("  price: %d", it.Price),
			fmt.Sprintf("  discount: %s", discount),
			fmt.Sprintf("  category: %s", strings.Join(it.Categories, ", ")),
			fmt.Sprintf("  flavour: %s", strings.Join(it.Flavours, ", ")),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// GreetInstruction asks for a greeting by given name that introduces the discounted items.
func GreetInstruction(userName string, discounted []domain.MenuItem) domain.Turn {
	titles := make([]string, 0, len(discounted))
	for _, it := range discounted {
		titles = append(titles, it.Title)
	}
	return domain.SystemTurn(fmt.Sprintf(`Người dùng tên là %s.
Các món đang giảm giá: %s.

Hãy:
1. Chào khách hàng thân thiện (đoán giới tính, gọi tên không gọi họ)
2. Giới thiệu các món đang giảm giá và hỏi họ muốn đặt gì.`, userName, strings.Join(titles, ", ")))
}

// ClarifyInstruction asks the customer to restate a missing item or quantity.
func ClarifyInstruction() domain.Turn {
	return domain.SystemTurn("Người dùng nhập món không tồn tại hoặc thiếu số lượng. Hãy hỏi lại để làm rõ. Không nói dài dòng thêm gì cả")
}

// BuyFollowupInstruction asks whether the customer wants anything else.
func BuyFollowupInstruction() domain.Turn {
	return domain.SystemTurn("Hãy hỏi khách muốn mua gì trong các món đang có không")
}

// CheckoutInstruction hands the cart off for payment, or says goodbye when it is empty.
func CheckoutInstruction(lines []domain.CartLine) domain.Turn {
	if len(lines) == 0 {
		return domain.SystemTurn("Khách hàng không muốn mua. Chào tạm biệt thân thiện và mời họ quay lại.")
	}
	return domain.SystemTurn(fmt.Sprintf(
		"Khách hàng đã mua:\n%s\nVới tổng tiền là %sđ. BẠN CHỈ CẦN BẢO KHÁCH ĐẾN GIỎ HÀNG ĐỂ THANH TOÁN",
		cart.Summary(lines), cart.FormatAmount(domain.CartTotal(lines))))
}

package intent

import (
	"fmt"
	"strings"

	"github.com/aretw0/orderbot/pkg/domain"
)

const systemPrompt = `Dựa vào thông tin đã có, hãy xác định ý định của người dùng.

Danh sách món có sẵn:
%s

CÁCH XÁC ĐỊNH SỐ LƯỢNG:
- Nếu người dùng nói một con số (1, 2, 3, …) đứng trước hoặc sau tên món
  thì đó là quantity.

Quy tắc phân loại:
1. intent="BUY" nếu:
   - Món có trong danh sách
   - VÀ xác định được quantity
2. intent="NOT_BUY" nếu:
   - Người dùng từ chối hoặc không muốn mua, hoặc không muốn mua nữa
3. intent="UNCLEAR" nếu:
   - Món không có trong danh sách
   - HOẶC chưa xác định được quantity

Chỉ trả về một đối tượng JSON duy nhất, không giải thích:
{"intent": "BUY" | "NOT_BUY" | "UNCLEAR", "item_id": số hoặc null, "quantity": số hoặc null}`

// SystemPrompt is the classification instruction that opens an intent transcript.
func SystemPrompt(items []domain.MenuItem) string {
	return fmt.Sprintf(systemPrompt, FormatItems(items))
}

// FormatItems renders the compact "- ID {id}: {title}" list the classifier sees.
func FormatItems(items []domain.MenuItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("- ID %d: %s", it.ID, it.Title))
	}
	return strings.Join(lines, "\n")
}

// Request is the transcript sent for one extraction: the intent transcript
// plus the latest user turn. A transcript without a leading system turn gets
// the classification prompt for catalog prepended.
func Request(transcript []domain.Turn, latest string, catalog domain.CatalogIndex) []domain.Turn {
	req := make([]domain.Turn, 0, len(transcript)+2)
	if len(transcript) == 0 || transcript[0].Role != domain.RoleSystem {
		req = append(req, domain.SystemTurn(SystemPrompt(catalog.Items())))
	}
	req = append(req, transcript...)
	return append(req, domain.UserTurn(latest))
}

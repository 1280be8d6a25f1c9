// Package cart folds resolved buy intents into the session cart.
// It is the only place cart lines are created.
package cart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/orderbot/pkg/domain"
)

// ResolveAndAppend looks the extracted item up in the catalog snapshot.
// A BUY for a known item appends one line and stays BUY; a BUY for an unknown
// item (or one without a positive quantity) leaves the cart as is and becomes
// UNCLEAR. Other intents pass through. The input slice is never modified.
func ResolveAndAppend(lines []domain.CartLine, e domain.ExtractedIntent, catalog domain.CatalogIndex) ([]domain.CartLine, domain.Intent) {
	if e.Intent != domain.IntentBuy {
		return lines, domain.ParseIntent(string(e.Intent))
	}
	if e.ItemID == nil || e.Quantity == nil || *e.Quantity <= 0 {
		return lines, domain.IntentUnclear
	}

	item, ok := catalog.Lookup(*e.ItemID)
	if !ok {
		return lines, domain.IntentUnclear
	}

	out := make([]domain.CartLine, len(lines), len(lines)+1)
	copy(out, lines)
	out = append(out, domain.CartLine{
		ItemID:    item.ID,
		Title:     item.Title,
		UnitPrice: item.Price,
		Quantity:  *e.Quantity,
		Discount:  item.Discount,
	})
	return out, domain.IntentBuy
}

// Summary renders one line per cart entry and the total, as handed to the
// checkout instruction.
func Summary(lines []domain.CartLine) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "- %s (ID:%d): %d x %sđ = %sđ\n",
			l.Title, l.ItemID, l.Quantity, FormatAmount(l.UnitPrice), FormatAmount(l.Subtotal()))
	}
	fmt.Fprintf(&b, "Tổng: %sđ", FormatAmount(domain.CartTotal(lines)))
	return b.String()
}

// FormatAmount groups thousands with commas: 118000 -> "118,000".
func FormatAmount(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

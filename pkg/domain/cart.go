package domain

import "math"

// CartLine is a snapshot of an ordered item. Lines are never mutated once
// appended; ordering the same item again appends another line.
type CartLine struct {
	ItemID    int     `json:"item_id"`
	Title     string  `json:"title"`
	UnitPrice int64   `json:"price"`
	Quantity  int     `json:"quantity"`
	Discount  float64 `json:"discount"`
}

// Subtotal is UnitPrice × Quantity × (1 − Discount), rounded to the nearest unit.
func (l CartLine) Subtotal() int64 {
	gross := float64(l.UnitPrice) * float64(l.Quantity)
	return int64(math.Round(gross * (1 - l.Discount)))
}

// CartTotal sums the subtotals of all lines.
func CartTotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

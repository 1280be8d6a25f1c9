package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartLine_Subtotal(t *testing.T) {
	tests := []struct {
		name string
		line CartLine
		want int64
	}{
		{"No Discount", CartLine{UnitPrice: 50000, Quantity: 2}, 100000},
		{"Ten Percent", CartLine{UnitPrice: 20000, Quantity: 3, Discount: 0.1}, 54000},
		{"Full Discount", CartLine{UnitPrice: 20000, Quantity: 1, Discount: 1}, 0},
		{"Rounds To Nearest Unit", CartLine{UnitPrice: 15, Quantity: 1, Discount: 0.25}, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.line.Subtotal())
		})
	}
}

func TestCartTotal(t *testing.T) {
	lines := []CartLine{
		{UnitPrice: 50000, Quantity: 2},
		{UnitPrice: 20000, Quantity: 1, Discount: 0.1},
	}
	assert.Equal(t, int64(118000), CartTotal(lines))
	assert.Zero(t, CartTotal(nil))
}

func TestParseIntent(t *testing.T) {
	tests := map[string]Intent{
		"BUY":      IntentBuy,
		" buy ":    IntentBuy,
		"NOT_BUY":  IntentNotBuy,
		"not_buy":  IntentNotBuy,
		"UNCLEAR":  IntentUnclear,
		"":         IntentUnclear,
		"PURCHASE": IntentUnclear,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseIntent(raw), "raw=%q", raw)
	}
}

func TestConversationState_Clone(t *testing.T) {
	input := "hello"
	s := &ConversationState{
		SessionID:    "s",
		Catalog:      []MenuItem{{ID: 1, Title: "Phở", Categories: []string{"main_dish"}}},
		Transcript:   []Turn{UserTurn("a")},
		Cart:         []CartLine{{ItemID: 1, Quantity: 1}},
		PendingInput: &input,
		LastTurn:     &TurnRecord{Key: "k", Messages: []string{"m"}},
	}

	c := s.Clone()
	c.Catalog[0].Categories[0] = "drink"
	c.Transcript[0].Content = "b"
	c.Cart[0].Quantity = 9
	*c.PendingInput = "changed"
	c.LastTurn.Messages[0] = "x"

	assert.Equal(t, "main_dish", s.Catalog[0].Categories[0])
	assert.Equal(t, "a", s.Transcript[0].Content)
	assert.Equal(t, 1, s.Cart[0].Quantity)
	assert.Equal(t, "hello", *s.PendingInput)
	assert.Equal(t, "m", s.LastTurn.Messages[0])
}

func TestConversationState_LatestUserTurn(t *testing.T) {
	s := &ConversationState{Transcript: []Turn{
		SystemTurn("sys"), UserTurn("first"), AssistantTurn("reply"), UserTurn("second"), AssistantTurn("again"),
	}}
	got, ok := s.LatestUserTurn()
	assert.True(t, ok)
	assert.Equal(t, "second", got)

	_, ok = (&ConversationState{}).LatestUserTurn()
	assert.False(t, ok)
}

func TestCatalogIndex(t *testing.T) {
	idx := NewCatalogIndex([]MenuItem{{ID: 2, Title: "Bánh mì"}, {ID: 1, Title: "Phở"}})
	it, ok := idx.Lookup(2)
	assert.True(t, ok)
	assert.Equal(t, "Bánh mì", it.Title)
	_, ok = idx.Lookup(99)
	assert.False(t, ok)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []int{1, 2}, []int{idx.Items()[0].ID, idx.Items()[1].ID})
}

func TestNormalizeDiscount(t *testing.T) {
	tests := []struct {
		raw     float64
		want    float64
		wantErr bool
	}{
		{0, 0, false},
		{-3, 0, false},
		{0.1, 0.1, false},
		{1, 1, false},
		{10, 0.1, false},
		{100, 1, false},
		{150, 0, true},
	}
	for _, tt := range tests {
		got, err := NormalizeDiscount(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "raw=%v", tt.raw)
			continue
		}
		assert.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "raw=%v", tt.raw)
	}
}

func TestMenuItem_Normalize(t *testing.T) {
	it, err := MenuItem{ID: 2, Title: "Bánh mì", Price: 20000, Discount: 10}.Normalize()
	assert.NoError(t, err)
	assert.InDelta(t, 0.1, it.Discount, 1e-9)

	_, err = MenuItem{ID: 3, Title: " ", Price: 1}.Normalize()
	assert.Error(t, err)

	_, err = MenuItem{ID: 4, Title: "x", Price: -1}.Normalize()
	assert.Error(t, err)
}

package domain

import "strings"

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	IntentBuy     Intent = "BUY"
	IntentNotBuy  Intent = "NOT_BUY"
	IntentUnclear Intent = "UNCLEAR"
)

// Intents lists every intent value, in routing order.
var Intents = []Intent{IntentBuy, IntentNotBuy, IntentUnclear}

// ParseIntent normalises a raw label. Anything unrecognised is UNCLEAR.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(raw))) {
	case IntentBuy:
		return IntentBuy
	case IntentNotBuy:
		return IntentNotBuy
	default:
		return IntentUnclear
	}
}

// ExtractedIntent is the ephemeral result of one extraction call.
type ExtractedIntent struct {
	Intent   Intent `json:"intent" mapstructure:"intent"`
	ItemID   *int   `json:"item_id,omitempty" mapstructure:"item_id"`
	Quantity *int   `json:"quantity,omitempty" mapstructure:"quantity"`
}

// Unclear is the safe default extraction result.
func Unclear() ExtractedIntent {
	return ExtractedIntent{Intent: IntentUnclear}
}

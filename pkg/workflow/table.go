package workflow

import (
	"github.com/aretw0/orderbot/pkg/domain"
)

var transitions = map[domain.NodeID]map[domain.Event]domain.NodeID{
	domain.NodeStart:       {domain.EventNext: domain.NodeLoadCatalog},
	domain.NodeLoadCatalog: {domain.EventNext: domain.NodeGreet},
	domain.NodeGreet:       {domain.EventNext: domain.NodeAwaitInput},
	domain.NodeAwaitInput:  {domain.EventNext: domain.NodeExtractIntent},
	domain.NodeExtractIntent: {
		domain.EventBuy:     domain.NodeRespondBuyFollowup,
		domain.EventNotBuy:  domain.NodeRespondCheckoutHandoff,
		domain.EventUnclear: domain.NodeRespondClarify,
	},
	domain.NodeRespondBuyFollowup:     {domain.EventNext: domain.NodeAwaitInput},
	domain.NodeRespondClarify:         {domain.EventNext: domain.NodeAwaitInput},
	domain.NodeRespondCheckoutHandoff: {domain.EventNext: domain.NodeEnd},
}

// nodeOrder lists every node in reading order.
var nodeOrder = []domain.NodeID{
	domain.NodeStart,
	domain.NodeLoadCatalog,
	domain.NodeGreet,
	domain.NodeAwaitInput,
	domain.NodeExtractIntent,
	domain.NodeRespondBuyFollowup,
	domain.NodeRespondClarify,
	domain.NodeRespondCheckoutHandoff,
	domain.NodeEnd,
}

// eventOrder fixes the order edges leave a node.
var eventOrder = []domain.Event{domain.EventNext, domain.EventBuy, domain.EventNotBuy, domain.EventUnclear}

// Edge is one row of the transition table.
type Edge struct {
	From  domain.NodeID
	Event domain.Event
	To    domain.NodeID
}

// Next looks up the transition for a node and event.
func Next(from domain.NodeID, ev domain.Event) (domain.NodeID, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// Nodes returns every node, START first and END last.
func Nodes() []domain.NodeID {
	return append([]domain.NodeID(nil), nodeOrder...)
}

// Edges returns the table in a stable order.
func Edges() []Edge {
	var out []Edge
	for _, from := range nodeOrder {
		for _, ev := range eventOrder {
			if to, ok := transitions[from][ev]; ok {
				out = append(out, Edge{From: from, Event: ev, To: to})
			}
		}
	}
	return out
}

// Route maps an intent to the ExtractIntent event. It is total: anything
// other than BUY or NOT_BUY, including the empty value, routes as unclear.
func Route(i domain.Intent) domain.Event {
	switch i {
	case domain.IntentBuy:
		return domain.EventBuy
	case domain.IntentNotBuy:
		return domain.EventNotBuy
	default:
		return domain.EventUnclear
	}
}

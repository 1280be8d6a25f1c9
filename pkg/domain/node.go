package domain

// NodeID names a step of the dialogue state machine.
type NodeID string

const (
	NodeStart                  NodeID = "START"
	NodeLoadCatalog            NodeID = "LoadCatalog"
	NodeGreet                  NodeID = "Greet"
	NodeAwaitInput             NodeID = "AwaitInput"
	NodeExtractIntent          NodeID = "ExtractIntent"
	NodeRespondBuyFollowup     NodeID = "RespondBuyFollowup"
	NodeRespondClarify         NodeID = "RespondClarify"
	NodeRespondCheckoutHandoff NodeID = "RespondCheckoutHandoff"
	NodeEnd                    NodeID = "END"
)

// Event is the outcome a node reports to the transition table.
type Event string

const (
	// EventNext is emitted by nodes with a single outgoing edge.
	EventNext    Event = "next"
	EventBuy     Event = "buy"
	EventNotBuy  Event = "not_buy"
	EventUnclear Event = "unclear"
)

// TurnStatus is what a caller gets back when a turn stops advancing.
type TurnStatus string

const (
	// StatusSuspended means the session waits at AwaitInput for the next input.
	StatusSuspended TurnStatus = "suspended"
	// StatusTerminated means the session reached END and accepts no more input.
	StatusTerminated TurnStatus = "terminated"
)

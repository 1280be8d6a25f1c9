/*
Package workflow runs the ordering dialogue as an explicit state machine.

The graph is a static table of (node, event) -> node. Nodes report an event
after doing their work; ExtractIntent reports the routed intent, every other
node reports EventNext. Advance drives one turn: it loads the checkpoint,
runs nodes until the session suspends at AwaitInput without input or reaches
END, and commits the new checkpoint only after the whole sequence succeeded.

	START -> LoadCatalog -> Greet -> AwaitInput
	AwaitInput -> ExtractIntent
	ExtractIntent -buy->     RespondBuyFollowup     -> AwaitInput
	ExtractIntent -not_buy-> RespondCheckoutHandoff -> END
	ExtractIntent -unclear-> RespondClarify         -> AwaitInput
*/
package workflow

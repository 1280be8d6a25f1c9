/*
Package orderbot is a conversational food ordering assistant built on a small,
fixed dialogue state machine driven by a language model.

# Concept

A conversation moves through a static transition table:

	START -> LoadCatalog -> Greet -> AwaitInput -> ExtractIntent
	ExtractIntent -- buy     --> RespondBuyFollowup     -> AwaitInput
	ExtractIntent -- unclear --> RespondClarify         -> AwaitInput
	ExtractIntent -- not_buy --> RespondCheckoutHandoff -> END

The model is used in two ways: a strict classifier turns each customer message
into BUY, NOT_BUY or UNCLEAR (with an item id and quantity for BUY), and a
conversational generator writes the replies. The engine owns everything else:
the cart, the routing and the checkpoints.

# Key Features

  - Suspend/resume: a turn runs until the next AwaitInput (or END) and commits
    one checkpoint. Nothing is saved when a turn fails.
  - Append-only cart: only a BUY naming a known item with a positive quantity
    adds a line. Everything else is treated as UNCLEAR.
  - Streaming: replies can be streamed through a respond.Sink while they are
    generated; a retried attempt resets the sink.
  - Pluggable storage: memory, file, Redis and SQLite checkpoint stores share
    one contract, with optimistic versioning and per-session locking.

# Usage

	catalog, _ := memory.NewCatalog(items)
	model, _ := llm.NewModel(ctx, llm.ProviderConfig{Provider: "googleai", Model: "gemini-2.0-flash", APIKey: key})

	eng := orderbot.New(catalog, model)
	res, _ := eng.Start(ctx, "session-123", "Lan", nil)
	fmt.Println(res.Messages[0])

	res, _ = eng.Resume(ctx, "session-123", "cho tôi 2 phở", nil)
	fmt.Println(res.Messages[0], res.Cart)

The orderbot command (cmd/orderbot) wires the same engine to a terminal chat,
an HTTP Server-Sent Events API and an MCP server.
*/
package orderbot

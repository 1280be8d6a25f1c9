/*
Package domain contains the core domain models of the ordering assistant.

It defines the conversation state threaded through the dialogue state machine,
the menu and cart value types, and the closed set of intents that drive routing.
This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - ConversationState: the per-session snapshot persisted as a checkpoint.
  - MenuItem / CatalogIndex: the catalog snapshot captured at session start.
  - CartLine: an immutable, append-only line of the running cart.
  - Intent / ExtractedIntent: the classified purpose of a user utterance.
  - NodeID / Event / TurnStatus: the vocabulary of the transition table.
*/
package domain

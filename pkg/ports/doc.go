/*
Package ports defines the driven ports (interfaces) of the ordering assistant.

These interfaces decouple the dialogue engine from external implementations,
allowing it to work with various checkpoint backends, catalog sources and
notification sinks.

# Key Interfaces

  - CheckpointStore: persists and loads ConversationState by session ID.
  - DistributedLocker: serialises turns of one session across replicas.
  - CatalogService: read-only access to the external menu.
  - CheckoutPublisher: optional notification when a cart is handed off.
*/
package ports

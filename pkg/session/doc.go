/*
Package session serialises turns per session.

A second turn for a session that is already mid-turn is rejected with
domain.ErrSessionBusy rather than queued, so two requests can never advance
the same checkpoint at once. Locks are reference counted and dropped when the
last holder leaves. With a ports.DistributedLocker configured, the same key is
also locked across replicas.
*/
package session

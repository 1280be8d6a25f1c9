package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionTerminated is returned when input is sent to a session that already reached END.
var ErrSessionTerminated = errors.New("session terminated")

// ErrSessionExists is returned when a first message names a thread that already has a checkpoint.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionBusy is returned when a turn is already running for the session.
var ErrSessionBusy = errors.New("session busy")

// ErrVersionConflict is returned by stores when the stored checkpoint moved underneath a save.
var ErrVersionConflict = errors.New("checkpoint version conflict")

// ErrStoreUnavailable wraps checkpoint store failures that abort a turn.
var ErrStoreUnavailable = errors.New("checkpoint store unavailable")

// ErrCatalogUnavailable wraps catalog failures while starting a session.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// ErrGenerationFailed wraps a reply generation that failed after retries.
// The turn is aborted and may be retried by the caller.
var ErrGenerationFailed = errors.New("reply generation failed")

// ErrEmptySessionID is returned when an operation is attempted without a session ID.
var ErrEmptySessionID = errors.New("session id cannot be empty")

// IsProtocolError reports whether err is caller misuse rather than a system failure.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionTerminated) ||
		errors.Is(err, ErrSessionExists) ||
		errors.Is(err, ErrEmptySessionID)
}

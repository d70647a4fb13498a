package services

import "errors"

// Failure taxonomy for the messaging core. Every gateway failure is recovered
// at the adapter boundary and surfaced to callers as one of these sentinels
// (wrapped with %w), never as a panic. None of them is fatal to a session:
// the worst outcome is a degraded, read-only or stale conversation view.
var (
	// ErrFetchFailed means a read path (history, contacts, previews) failed.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrSendFailed means a message insert was not confirmed by the store.
	// No partial state remains: a message either persisted or it did not.
	ErrSendFailed = errors.New("send failed")

	// ErrChannelClosed means a live delivery subscription dropped. History
	// remains valid; live updates stop until the caller resubscribes.
	ErrChannelClosed = errors.New("delivery channel closed")
)

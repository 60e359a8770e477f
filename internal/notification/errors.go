package notification

import "errors"

var (
	// ErrNotFound targets a missing or already-deleted notification.
	ErrNotFound = errors.New("notification not found")

	// ErrInvalidTransition is an attempted status change that violates
	// the lifecycle state machine (e.g. cancelling a sent notification).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrBusy rejects a mutating operation while another one is still
	// in flight for the same draft or notification id.
	ErrBusy = errors.New("operation already in flight")

	// ErrGenerationFailed wraps template draft service failures. It is
	// recoverable: the caller may retry or regenerate.
	ErrGenerationFailed = errors.New("template generation failed")
)

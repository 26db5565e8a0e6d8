package certificates

import "errors"

var (
	ErrNotFound          = errors.New("entry not found")
	ErrInvalidTransition = errors.New("InvalidTransition")
	ErrAlreadyInFlight   = errors.New("AlreadyInFlight")

	// ErrCancellationPending is returned when a removal request hits an
	// in-flight entry and is converted into a cancellation instead.
	ErrCancellationPending = errors.New("cancellation pending")
)

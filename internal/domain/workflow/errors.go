package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted in the
	// current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every guarded transition for a trigger
	// rejected the context.
	ErrGuardFailed = errors.New("guard condition failed")
)

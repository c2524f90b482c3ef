package domain

import "errors"

// Sentinel errors for the two caller-fault failure classes. Handlers map
// these to 400 and 409 respectively; everything else is treated as a
// persistence or infrastructure failure.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid state transition")
)

package workflow

import "errors"

// Error taxonomy for workflow operations. Handlers map these to HTTP
// statuses; everything else is an internal failure.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("actor not permitted for this transition")
	ErrInvalidTransition = errors.New("invalid transition for current state")
	ErrInvalidInput      = errors.New("invalid input")
)

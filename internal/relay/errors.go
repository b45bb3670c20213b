package relay

import (
	"errors"
	"fmt"
)

// Errors reported by Service operations. Storage failures are wrapped and
// propagated as-is so callers can map them to a generic failure.
var (
	// ErrConflict means the participant name is already taken.
	ErrConflict = errors.New("relay: participant already joined")

	// ErrNotFound means the operation referenced an unregistered
	// participant.
	ErrNotFound = errors.New("relay: participant not found")
)

// ValidationError reports which field of a request failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("relay: invalid %s: %s", e.Field, e.Reason)
}

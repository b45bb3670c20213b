// Package participant tracks the active members of the chat room and the
// time of their last activity. The registry is the authority on presence:
// joins, heartbeats and the periodic staleness eviction all go through it.
//
// Two implementations are provided: a Redis-backed registry for deployments
// with shared state, and an in-memory registry for single-process runs and
// tests.
package participant

import (
	"context"
	"errors"
	"time"
)

// Errors reported by Registry implementations.
var (
	// ErrConflict means the name is already registered.
	ErrConflict = errors.New("participant: name already registered")

	// ErrNotFound means the name is not currently registered.
	ErrNotFound = errors.New("participant: not registered")
)

// Participant is a registered chat identity.
type Participant struct {
	Name         string    `json:"name"`
	LastActivity time.Time `json:"lastActivity"`
}

// Registry tracks active participants. Implementations must be safe for
// concurrent use by request handlers and the sweeper.
type Registry interface {
	// Join registers a new participant with LastActivity set to now.
	// Returns ErrConflict if the name is already taken; concurrent joins
	// for the same name yield exactly one success.
	Join(ctx context.Context, name string) (Participant, error)

	// Touch refreshes a participant's last activity. The timestamp never
	// moves backwards. Returns ErrNotFound if the name is not registered.
	Touch(ctx context.Context, name string) error

	// List returns a snapshot of the current participants in a stable
	// order.
	List(ctx context.Context) ([]Participant, error)

	// EvictStaleSince removes and returns every participant whose last
	// activity is at least threshold in the past. A Touch racing with the
	// eviction is resolved last-writer-wins on the activity timestamp.
	EvictStaleSince(ctx context.Context, threshold time.Duration) ([]Participant, error)
}

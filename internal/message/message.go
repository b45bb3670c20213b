// Package message provides the append-only message log. Messages are
// immutable once stored and retrieval order is always insertion order.
//
// Two Log implementations are provided: a PostgreSQL-backed one for durable
// deployments and an in-memory one for single-process runs and tests.
package message

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message kinds. Status messages are system-generated only (join and leave
// notices); clients may author chat and private_chat.
const (
	KindChat        = "chat"
	KindPrivateChat = "private_chat"
	KindStatus      = "status"
)

// Broadcast is the reserved recipient meaning "all participants".
const Broadcast = "all"

// ValidKind reports whether kind is one of the three permitted values.
func ValidKind(kind string) bool {
	return kind == KindChat || kind == KindPrivateChat || kind == KindStatus
}

// Message is one entry in the log. ID and Time are assigned at insertion.
type Message struct {
	ID   uuid.UUID `json:"id"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Text string    `json:"text"`
	Kind string    `json:"kind"`
	Time time.Time `json:"time"`
}

// Log is the append-only message store. Implementations must be safe for
// concurrent use by request handlers and the sweeper.
type Log interface {
	// Append stores msg, assigning its ID and Time, and returns the
	// stored message. The log trusts its input; validation happens in the
	// relay layer.
	Append(ctx context.Context, msg Message) (Message, error)

	// For returns every message sent by name, addressed to name, or
	// broadcast to the room, in insertion order. Broadcast messages are
	// visible to every requester.
	For(ctx context.Context, name string) ([]Message, error)

	// ForLimited returns at most the last limit entries of For(name).
	// Truncation keeps the tail; limit <= 0 means unbounded.
	ForLimited(ctx context.Context, name string, limit int) ([]Message, error)
}

package message

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/parley/chat-relay/internal/clock"
)

// MemoryLog keeps the message log in an in-process slice behind a mutex.
// It backs single-process runs (no DATABASE_URL configured) and tests.
type MemoryLog struct {
	clk clock.Clock

	mu      sync.Mutex
	entries []Message
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog(clk clock.Clock) *MemoryLog {
	return &MemoryLog{clk: clk}
}

// Append stores msg with a fresh ID and the current time.
func (l *MemoryLog) Append(ctx context.Context, msg Message) (Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg.ID = uuid.New()
	msg.Time = l.clk.Now()
	l.entries = append(l.entries, msg)
	return msg, nil
}

// For returns name's view of the log in insertion order.
func (l *MemoryLog) For(ctx context.Context, name string) ([]Message, error) {
	return l.ForLimited(ctx, name, 0)
}

// ForLimited returns at most the last limit entries of name's view.
func (l *MemoryLog) ForLimited(ctx context.Context, name string, limit int) ([]Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Message, 0)
	for _, m := range l.entries {
		if m.From == name || m.To == name || m.To == Broadcast {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

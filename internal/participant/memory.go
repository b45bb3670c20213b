package participant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/parley/chat-relay/internal/clock"
)

// MemoryRegistry keeps the participant set in process memory behind a
// mutex. It backs single-process runs (no REDIS_ADDR configured) and tests.
type MemoryRegistry struct {
	clk clock.Clock

	mu      sync.Mutex
	members map[string]time.Time
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry(clk clock.Clock) *MemoryRegistry {
	return &MemoryRegistry{
		clk:     clk,
		members: make(map[string]time.Time),
	}
}

// Join registers name, rejecting duplicates with ErrConflict.
func (r *MemoryRegistry) Join(ctx context.Context, name string) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[name]; ok {
		return Participant{}, ErrConflict
	}
	now := r.clk.Now()
	r.members[name] = now
	return Participant{Name: name, LastActivity: now}, nil
}

// Touch refreshes name's activity timestamp, never moving it backwards.
func (r *MemoryRegistry) Touch(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.members[name]
	if !ok {
		return ErrNotFound
	}
	if now := r.clk.Now(); now.After(last) {
		r.members[name] = now
	}
	return nil
}

// List returns the current participants sorted by name.
func (r *MemoryRegistry) List(ctx context.Context) ([]Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Participant, 0, len(r.members))
	for name, last := range r.members {
		out = append(out, Participant{Name: name, LastActivity: last})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// EvictStaleSince removes every participant whose last activity is at least
// threshold in the past and returns the evicted set.
func (r *MemoryRegistry) EvictStaleSince(ctx context.Context, threshold time.Duration) ([]Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clk.Now().Add(-threshold)
	var evicted []Participant
	for name, last := range r.members {
		if !last.After(cutoff) {
			evicted = append(evicted, Participant{Name: name, LastActivity: last})
			delete(r.members, name)
		}
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i].Name < evicted[j].Name })
	return evicted, nil
}

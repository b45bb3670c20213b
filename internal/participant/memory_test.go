package participant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parley/chat-relay/internal/clock"
)

func newTestRegistry() (*MemoryRegistry, *clock.Fake) {
	clk := clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewMemoryRegistry(clk), clk
}

func TestJoinDuplicateConflicts(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	if _, err := r.Join(ctx, "alice"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if _, err := r.Join(ctx, "alice"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestConcurrentJoinSingleWinner(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Join(ctx, "alice"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 successful join, got %d", successes)
	}
}

func TestTouchAdvancesLastActivity(t *testing.T) {
	r, clk := newTestRegistry()
	ctx := context.Background()

	p, err := r.Join(ctx, "alice")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}

	clk.Advance(3 * time.Second)
	if err := r.Touch(ctx, "alice"); err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	members, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(members))
	}
	if !members[0].LastActivity.After(p.LastActivity) {
		t.Errorf("expected lastActivity to advance past %v, got %v",
			p.LastActivity, members[0].LastActivity)
	}
}

func TestTouchUnknownIsNotFound(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	if err := r.Touch(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	members, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("touch of unknown name mutated the registry: %v", members)
	}
}

func TestListIsSortedByName(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		if _, err := r.Join(ctx, name); err != nil {
			t.Fatalf("join %s failed: %v", name, err)
		}
	}

	members, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if len(members) != len(want) {
		t.Fatalf("expected %d participants, got %d", len(want), len(members))
	}
	for i, name := range want {
		if members[i].Name != name {
			t.Errorf("index %d: expected %q, got %q", i, name, members[i].Name)
		}
	}
}

func TestEvictStaleSince(t *testing.T) {
	r, clk := newTestRegistry()
	ctx := context.Background()

	if _, err := r.Join(ctx, "bob"); err != nil {
		t.Fatalf("join bob failed: %v", err)
	}

	clk.Advance(10 * time.Second)
	if _, err := r.Join(ctx, "alice"); err != nil {
		t.Fatalf("join alice failed: %v", err)
	}

	evicted, err := r.EvictStaleSince(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("evict failed: %v", err)
	}
	if len(evicted) != 1 || evicted[0].Name != "bob" {
		t.Fatalf("expected exactly bob evicted, got %v", evicted)
	}

	members, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(members) != 1 || members[0].Name != "alice" {
		t.Fatalf("expected only alice to remain, got %v", members)
	}
}

func TestTouchBeforeThresholdPreventsEviction(t *testing.T) {
	r, clk := newTestRegistry()
	ctx := context.Background()

	if _, err := r.Join(ctx, "bob"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	clk.Advance(8 * time.Second)
	if err := r.Touch(ctx, "bob"); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	clk.Advance(8 * time.Second)

	evicted, err := r.EvictStaleSince(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("evict failed: %v", err)
	}
	if len(evicted) != 0 {
		t.Fatalf("expected no evictions, got %v", evicted)
	}
}

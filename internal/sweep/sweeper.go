// Package sweep runs the recurring staleness pass: participants whose last
// activity is older than the threshold are evicted from the registry and a
// departure notice is appended to the message log for each of them.
package sweep

import (
	"context"
	"log"
	"time"

	"github.com/parley/chat-relay/internal/clock"
	"github.com/parley/chat-relay/internal/message"
	"github.com/parley/chat-relay/internal/messaging"
	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/participant"
)

// Defaults match the original relay: sweep every 15s, evict after 10s of
// silence.
const (
	DefaultInterval  = 15 * time.Second
	DefaultThreshold = 10 * time.Second
)

// leftText is the body of the status message emitted on eviction.
const leftText = "left the room"

// Sweeper owns handles to the registry and log and evicts stale
// participants on a fixed interval. Tests call RunSweep directly with a
// fake clock instead of waiting on the ticker.
type Sweeper struct {
	registry  participant.Registry
	log       message.Log
	events    *messaging.Publisher // nil disables presence events
	clk       clock.Clock
	interval  time.Duration
	threshold time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweeper. Zero interval or threshold select the defaults.
func New(registry participant.Registry, msgLog message.Log, events *messaging.Publisher, clk clock.Clock, interval, threshold time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Sweeper{
		registry:  registry,
		log:       msgLog,
		events:    events,
		clk:       clk,
		interval:  interval,
		threshold: threshold,
	}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	log.Printf("[sweep] started interval=%s threshold=%s", s.interval, s.threshold)
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.cancel()
	<-s.done
	log.Println("[sweep] stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunSweep(ctx)
		}
	}
}

// RunSweep performs one eviction pass. Eviction is a registry-local
// decision: a failed departure notice is logged and the participant stays
// evicted.
func (s *Sweeper) RunSweep(ctx context.Context) {
	start := time.Now()

	evicted, err := s.registry.EvictStaleSince(ctx, s.threshold)
	if err != nil {
		log.Printf("[sweep] evict stale: %v", err)
		return
	}

	for _, p := range evicted {
		if _, err := s.log.Append(ctx, message.Message{
			From: p.Name,
			To:   message.Broadcast,
			Text: leftText,
			Kind: message.KindStatus,
		}); err != nil {
			log.Printf("[sweep] departure notice for %s: %v", p.Name, err)
			continue
		}
		metrics.MessagesTotal.WithLabelValues(message.KindStatus).Inc()

		if s.events != nil {
			if err := s.events.Left(p.Name, s.clk.Now()); err != nil {
				log.Printf("[sweep] presence event for %s: %v", p.Name, err)
			}
		}
	}

	if len(evicted) > 0 {
		metrics.ActiveParticipants.Sub(float64(len(evicted)))
		metrics.EvictionsTotal.Add(float64(len(evicted)))
		log.Printf("[sweep] evicted %d stale participants", len(evicted))
	}
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
}

// Package relay implements the core chat operations the HTTP layer exposes:
// joining the room, posting messages, polling the message log, heartbeats,
// and listing participants. It owns validation and the error taxonomy; the
// registry and log are injected at startup and shared with the sweeper.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/parley/chat-relay/internal/message"
	"github.com/parley/chat-relay/internal/messaging"
	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/participant"
)

// enteredText is the body of the status message emitted on join.
const enteredText = "entered the room"

// Service wires the participant registry and message log behind the
// operation contracts of the relay.
type Service struct {
	registry participant.Registry
	log      message.Log
	events   *messaging.Publisher // nil disables presence events
}

// NewService creates a relay service over the given stores. events may be
// nil when no NATS connection is configured.
func NewService(registry participant.Registry, msgLog message.Log, events *messaging.Publisher) *Service {
	return &Service{registry: registry, log: msgLog, events: events}
}

// Join registers name and announces the arrival with a broadcast status
// message. A duplicate name yields ErrConflict.
func (s *Service) Join(ctx context.Context, name string) (participant.Participant, error) {
	if name == "" {
		return participant.Participant{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	p, err := s.registry.Join(ctx, name)
	if errors.Is(err, participant.ErrConflict) {
		return participant.Participant{}, ErrConflict
	}
	if err != nil {
		return participant.Participant{}, fmt.Errorf("relay: join: %w", err)
	}

	if _, err := s.log.Append(ctx, message.Message{
		From: name,
		To:   message.Broadcast,
		Text: enteredText,
		Kind: message.KindStatus,
	}); err != nil {
		// The participant is registered; the missing notice is reported,
		// not rolled back.
		return p, fmt.Errorf("relay: join notice: %w", err)
	}

	metrics.ActiveParticipants.Inc()
	metrics.MessagesTotal.WithLabelValues(message.KindStatus).Inc()

	if s.events != nil {
		if err := s.events.Joined(p.Name, p.LastActivity); err != nil {
			log.Printf("[relay] presence event for %s: %v", p.Name, err)
		}
	}
	return p, nil
}

// Heartbeat refreshes name's activity timestamp. Unknown names, including
// the empty one, yield ErrNotFound.
func (s *Service) Heartbeat(ctx context.Context, name string) error {
	if name == "" {
		return ErrNotFound
	}
	err := s.registry.Touch(ctx, name)
	if errors.Is(err, participant.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("relay: heartbeat: %w", err)
	}
	return nil
}

// PostMessage validates and appends a client-authored message. The sender
// comes from request context, not the body. Status messages are system
// generated and rejected here.
func (s *Service) PostMessage(ctx context.Context, from, to, text, kind string) (message.Message, error) {
	switch {
	case from == "":
		return message.Message{}, &ValidationError{Field: "from", Reason: "sender identity required"}
	case to == "":
		return message.Message{}, &ValidationError{Field: "to", Reason: "must not be empty"}
	case text == "":
		return message.Message{}, &ValidationError{Field: "text", Reason: "must not be empty"}
	case kind == message.KindStatus:
		return message.Message{}, &ValidationError{Field: "kind", Reason: "reserved for system messages"}
	case !message.ValidKind(kind):
		return message.Message{}, &ValidationError{Field: "kind", Reason: "must be chat or private_chat"}
	}

	msg, err := s.log.Append(ctx, message.Message{From: from, To: to, Text: text, Kind: kind})
	if err != nil {
		return message.Message{}, fmt.Errorf("relay: post message: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues(kind).Inc()
	return msg, nil
}

// ListParticipants returns a snapshot of the current room membership.
func (s *Service) ListParticipants(ctx context.Context) ([]participant.Participant, error) {
	members, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("relay: list participants: %w", err)
	}
	return members, nil
}

// ListMessagesFor returns name's view of the log: messages sent by them,
// addressed to them, or broadcast to the room, in insertion order. A
// positive limit keeps only the tail.
func (s *Service) ListMessagesFor(ctx context.Context, name string, limit int) ([]message.Message, error) {
	if name == "" {
		return nil, &ValidationError{Field: "user", Reason: "requester identity required"}
	}
	msgs, err := s.log.ForLimited(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("relay: list messages: %w", err)
	}
	return msgs, nil
}

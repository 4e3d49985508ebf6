// Package channels provides the outbound delivery abstraction. A
// Sender wraps one external gateway (SMS, SMTP); the Manager routes a
// message to the right sender and applies per-channel rate limits so
// a large dispatch batch cannot hammer a gateway.
package channels

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownChannel is returned when no sender is registered for a
// message's channel.
var ErrUnknownChannel = errors.New("channels: unknown channel")

// OutboundMessage is one delivery request handed to a sender.
type OutboundMessage struct {
	To      string // phone number or email address
	Subject string // email only
	Body    string
}

// Sender delivers an outbound message through one external gateway.
// Any non-nil error is a terminal failure for that attempt; the
// dispatcher records it and does not retry.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg OutboundMessage) error
}

// Manager routes outbound messages to registered senders.
type Manager struct {
	senders  map[string]Sender
	limiters map[string]*Limiter
}

// NewManager creates an empty sender registry.
func NewManager() *Manager {
	return &Manager{
		senders:  make(map[string]Sender),
		limiters: make(map[string]*Limiter),
	}
}

// Register adds a sender with an outbound rate limit in messages per
// second. ratePerSec <= 0 means unlimited.
func (m *Manager) Register(s Sender, ratePerSec float64) {
	m.senders[s.Name()] = s
	if ratePerSec > 0 {
		m.limiters[s.Name()] = NewLimiter(ratePerSec)
	}
}

// Has reports whether a sender is registered for the channel.
func (m *Manager) Has(channel string) bool {
	_, ok := m.senders[channel]
	return ok
}

// Channels lists the registered channel names.
func (m *Manager) Channels() []string {
	out := make([]string, 0, len(m.senders))
	for name := range m.senders {
		out = append(out, name)
	}
	return out
}

// Send waits for the channel's rate limiter, then delivers the
// message through its sender.
func (m *Manager) Send(ctx context.Context, channel string, msg OutboundMessage) error {
	s, ok := m.senders[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	if lim, ok := m.limiters[channel]; ok {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return s.Send(ctx, msg)
}

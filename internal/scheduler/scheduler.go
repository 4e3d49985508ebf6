// Package scheduler turns accepted triggers into outbox rows.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// Scheduler queues composed messages for delivery. It writes exactly
// one pending outbox row per accepted trigger; delivery-time policy
// (gate re-check, address resolution) belongs to the dispatcher.
type Scheduler struct {
	messages store.MessageStore
	logger   *slog.Logger
}

func New(messages store.MessageStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{messages: messages, logger: logger}
}

// Request is one accepted, composed trigger ready to be queued.
type Request struct {
	ContactID uuid.UUID
	AgentID   uuid.UUID
	Kind      string
	Channel   string
	Subject   string
	Body      string
	// SendAt is the earliest delivery time. Zero means deliver on the
	// next dispatch pass.
	SendAt time.Time
}

// Schedule inserts a pending message due at req.SendAt.
func (s *Scheduler) Schedule(ctx context.Context, req Request) (*store.ScheduledMessage, error) {
	if req.Body == "" {
		return nil, fmt.Errorf("schedule: empty body for contact %s kind %s", req.ContactID, req.Kind)
	}

	sendAt := req.SendAt
	if sendAt.IsZero() {
		sendAt = time.Now()
	}

	msg := &store.ScheduledMessage{
		ID:           store.GenNewID(),
		ContactID:    req.ContactID,
		AgentID:      req.AgentID,
		Kind:         req.Kind,
		Channel:      req.Channel,
		ScheduledFor: sendAt,
		Status:       store.MessagePending,
		Subject:      req.Subject,
		Body:         req.Body,
		CreatedAt:    time.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	s.logger.Debug("message scheduled",
		"message_id", msg.ID,
		"contact_id", msg.ContactID,
		"kind", msg.Kind,
		"channel", msg.Channel,
		"scheduled_for", msg.ScheduledFor)
	return msg, nil
}

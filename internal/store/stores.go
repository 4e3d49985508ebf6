// Package store defines the persistence contracts for the engine:
// agents, per-contact conversation state, the scheduled-message outbox,
// and the append-only activity log. Postgres (managed mode) and SQLite
// (standalone mode) implementations live in subpackages.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Stores is the top-level container for all storage backends.
type Stores struct {
	Agents        AgentStore
	Contacts      ContactStore
	Conversations ConversationStore
	Messages      MessageStore
	Activity      ActivityStore

	// Close releases the underlying database handle.
	Close func() error
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	PostgresDSN string // managed mode when non-empty
	SQLitePath  string // standalone mode fallback
}

// AgentStore manages agent assignments.
type AgentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Agent, error)
	Create(ctx context.Context, a *Agent) error

	// ListActive returns all agents with status "active", joined with
	// the contact snapshot the trigger rules need.
	ListActive(ctx context.Context) ([]AgentWithContact, error)

	// RecordSend increments messages_sent and bumps last_engaged_at
	// after a successful dispatch.
	RecordSend(ctx context.Context, id uuid.UUID, at time.Time) error

	// ExpireOverdue flips status to "expired" for every active agent
	// whose expires_at has passed. Returns the number of rows changed.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// ContactStore reads the CRM contact snapshot the engine needs. The
// engine never creates contacts in managed mode; Upsert serves
// standalone seeding and tests.
type ContactStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Contact, error)
	Upsert(ctx context.Context, c *Contact) error
}

// AgentWithContact pairs an agent with its contact snapshot so one
// trigger pass needs a single query per sweep, not one per agent.
type AgentWithContact struct {
	Agent   Agent
	Contact Contact
}

// ConversationStore manages the per-contact throttle/ownership ledger.
// All mutations are single conditional statements so that concurrent
// sweeps never read-modify-write in two steps.
type ConversationStore interface {
	// GetOrCreate returns the contact's state, inserting a fresh row
	// on first touch.
	GetOrCreate(ctx context.Context, contactID uuid.UUID) (*ConversationState, error)

	// Acquire attempts to make agentID the active agent in a single
	// conditional update. It succeeds when the slot is empty, already
	// held by agentID, or held by a strictly lower priority. Returns
	// false when a higher-or-equal priority incumbent keeps the slot.
	Acquire(ctx context.Context, contactID, agentID uuid.UUID, priority int) (bool, error)

	// Defer appends a suppressed request to the contact's queue,
	// trimmed to the most recent entries.
	Defer(ctx context.Context, contactID uuid.UUID, req DeferredRequest) error

	// RecordSend atomically increments both counters and sets
	// last_message_at.
	RecordSend(ctx context.Context, contactID uuid.UUID, at time.Time) error

	// SetWaitingUntil installs (or clears, with nil) the hard-block
	// deadline that wins over counter checks.
	SetWaitingUntil(ctx context.Context, contactID uuid.UUID, until *time.Time) error

	// ResetDaily zeroes sent_today for every contact. ResetWeekly
	// additionally zeroes sent_this_week. Both are idempotent.
	ResetDaily(ctx context.Context) (int, error)
	ResetWeekly(ctx context.Context) (int, error)
}

// MessageStore manages the scheduled-message outbox.
type MessageStore interface {
	Create(ctx context.Context, m *ScheduledMessage) error
	Get(ctx context.Context, id uuid.UUID) (*ScheduledMessage, error)

	// ClaimDue atomically flips up to limit due pending messages to
	// "claimed" and returns them oldest-first. Two overlapping sweeps
	// can never claim the same row.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]ScheduledMessage, error)

	// MarkSent moves a claimed message to its terminal "sent" state.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkFailed moves a claimed message to "failed", records the
	// reason, and increments retry_count.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// Release puts a claimed message back to "pending" when the
	// frequency gate rejects it at dispatch time (backpressure, not
	// an error).
	Release(ctx context.Context, id uuid.UUID) error

	// ReleaseStale sweeps claims older than staleBefore back to
	// pending (crash recovery). Returns rows changed.
	ReleaseStale(ctx context.Context, staleBefore time.Time) (int, error)

	// CountRecentByKind counts messages of one kind created for a
	// contact since the given time, regardless of status. Used by the
	// upsell lookback window.
	CountRecentByKind(ctx context.Context, contactID uuid.UUID, kind string, since time.Time) (int, error)
}

// ActivityStore is the append-only audit trail plus the
// customer-facing conversation log.
type ActivityStore interface {
	Append(ctx context.Context, rec *ActivityRecord) error

	// ListByKinds returns a contact's activity filtered to the given
	// kinds, newest first.
	ListByKinds(ctx context.Context, contactID uuid.UUID, kinds []string, limit int) ([]ActivityRecord, error)

	// AppendConversation adds a line to the customer-facing
	// conversation log (sms sends land here).
	AppendConversation(ctx context.Context, e *ConversationEntry) error

	// RecentConversation returns the last limit entries for a
	// contact, oldest first, for composer history.
	RecentConversation(ctx context.Context, contactID uuid.UUID, limit int) ([]ConversationEntry, error)
}

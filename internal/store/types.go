package store

import (
	"time"

	"github.com/google/uuid"
)

// GenNewID returns a time-ordered UUIDv7 for new rows.
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// AgentStatus is the lifecycle state of an agent assignment.
type AgentStatus string

const (
	AgentActive  AgentStatus = "active"
	AgentExpired AgentStatus = "expired"
)

// Agent is one assignment of a product/purpose to a contact.
// Read-mostly by the trigger sweep; RecordSend updates it after a
// successful dispatch.
type Agent struct {
	ID            uuid.UUID   `json:"id"`
	ContactID     uuid.UUID   `json:"contact_id"`
	Type          string      `json:"type"` // "customer_service", "sales", "nurture", ...
	Status        AgentStatus `json:"status"`
	AssignedAt    time.Time   `json:"assigned_at"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	MessagesSent  int         `json:"messages_sent"`
	LastEngagedAt *time.Time  `json:"last_engaged_at,omitempty"`
}

// Contact is the slice of the CRM contact record the engine reads:
// channel addresses plus the signals trigger rules evaluate.
type Contact struct {
	ID              uuid.UUID  `json:"id"`
	FirstName       string     `json:"first_name,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Email           string     `json:"email,omitempty"`
	EngagementScore int        `json:"engagement_score"`
	LifetimeSpend   int64      `json:"lifetime_spend"` // cents
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// DeferredRequest is one suppressed messaging intent parked in a
// contact's conversation queue by the arbiter.
type DeferredRequest struct {
	AgentID     uuid.UUID `json:"agent_id"`
	MessageKind string    `json:"message_kind"`
	QueuedAt    time.Time `json:"queued_at"`
}

// ConversationState is the per-contact throttle and ownership ledger.
// Exactly one row per contact, created lazily on first touch.
type ConversationState struct {
	ContactID      uuid.UUID         `json:"contact_id"`
	ActiveAgentID  *uuid.UUID        `json:"active_agent_id,omitempty"`
	ActivePriority int               `json:"active_priority"`
	Deferred       []DeferredRequest `json:"deferred,omitempty"`
	SentToday      int               `json:"sent_today"`
	SentThisWeek   int               `json:"sent_this_week"`
	LastMessageAt  *time.Time        `json:"last_message_at,omitempty"`
	LastEngagedAt  *time.Time        `json:"last_engaged_at,omitempty"`
	WaitingUntil   *time.Time        `json:"waiting_until,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// MessageStatus is the delivery state of a ScheduledMessage.
//
// pending → sent and pending → failed are the only externally visible
// transitions. "claimed" is an internal in-flight marker held by a
// single dispatcher pass; claimed rows either reach a terminal state,
// go back to pending (gate backoff), or are swept back to pending by
// stale-claim recovery after a crash.
type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageClaimed MessageStatus = "claimed"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// Message kinds produced by trigger rules.
const (
	KindIntroduction     = "introduction"
	KindCheckin          = "checkin"
	KindUpsell           = "upsell"
	KindRetention        = "retention"
	KindExpirationNotice = "expiration_notice"
	KindOnboarding       = "onboarding"
)

// Channel identifiers for outbound delivery.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// ScheduledMessage is one queued/sent/failed delivery attempt,
// retained indefinitely as an audit trail.
type ScheduledMessage struct {
	ID           uuid.UUID     `json:"id"`
	ContactID    uuid.UUID     `json:"contact_id"`
	AgentID      uuid.UUID     `json:"agent_id"`
	Kind         string        `json:"kind"`
	Channel      string        `json:"channel"`
	ScheduledFor time.Time     `json:"scheduled_for"`
	Status       MessageStatus `json:"status"`
	Subject      string        `json:"subject,omitempty"` // email only
	Body         string        `json:"body"`
	RetryCount   int           `json:"retry_count"`
	ErrorMessage string        `json:"error_message,omitempty"`
	SentAt       *time.Time    `json:"sent_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ActivityRecord is one append-only audit entry.
type ActivityRecord struct {
	ID        uuid.UUID         `json:"id"`
	ContactID uuid.UUID         `json:"contact_id"`
	AgentID   *uuid.UUID        `json:"agent_id,omitempty"`
	Kind      string            `json:"kind"` // "message_sent", "message_failed", "trigger_deferred", ...
	Detail    map[string]string `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Activity kinds.
const (
	ActivityMessageSent     = "message_sent"
	ActivityMessageFailed   = "message_failed"
	ActivityTriggerDeferred = "trigger_deferred"
	ActivityAgentExpired    = "agent_expired"
	ActivityCountersReset   = "counters_reset"
)

// ConversationEntry is one line of the customer-facing conversation
// log. SMS sends are appended here so later composer calls see them
// as history.
type ConversationEntry struct {
	ID        uuid.UUID `json:"id"`
	ContactID uuid.UUID `json:"contact_id"`
	Role      string    `json:"role"` // "agent" or "contact"
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Package composer produces message copy for scheduled outreach. The
// production implementation calls an OpenAI-compatible chat API; tests
// plug in fakes through the Composer interface.
package composer

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// HistoryEntry is one prior exchange with the contact, oldest first.
type HistoryEntry struct {
	Role string // "agent" or "contact"
	Body string
	At   time.Time
}

// Request carries everything the composer needs to write one message.
type Request struct {
	Contact   store.Contact
	AgentType string
	Kind      string
	Channel   string
	// Context is free-form trigger detail, e.g. "no engagement for 7
	// days" or "agent expires in 5 days".
	Context string
	// History is recent conversation with the contact, oldest first.
	History []HistoryEntry
}

// Draft is the composed message. Subject is empty for SMS.
type Draft struct {
	Subject string
	Body    string
}

// Composer writes outreach copy. A failed composition drops the
// trigger for this sweep; the evaluator will fire it again on a later
// pass if the condition still holds.
type Composer interface {
	Compose(ctx context.Context, req Request) (Draft, error)
}

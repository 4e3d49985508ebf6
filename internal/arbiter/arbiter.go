// Package arbiter resolves which agent owns the right to message a
// contact. Ownership lives in the conversation ledger's active slot;
// the store performs the compare-and-set so two concurrent trigger
// sweeps can never both win it.
package arbiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// Rank table keyed by agent type. Customer-service always wins;
// content/education agents share one middle rank.
var defaultRanks = map[string]int{
	"customer_service": 10,
	"sales":            5,
	"content":          3,
	"education":        3,
	"nurture":          1,
}

// defaultRank applies to agent types missing from the table.
const defaultRank = 1

// Table is a priority rank lookup, configurable per deployment.
type Table struct {
	ranks map[string]int
}

// NewTable builds a rank table from config overrides layered on the
// defaults. A nil or empty override map keeps the defaults as-is.
func NewTable(overrides map[string]int) *Table {
	ranks := make(map[string]int, len(defaultRanks)+len(overrides))
	for k, v := range defaultRanks {
		ranks[k] = v
	}
	for k, v := range overrides {
		ranks[k] = v
	}
	return &Table{ranks: ranks}
}

// Rank returns the priority rank for an agent type.
func (t *Table) Rank(agentType string) int {
	if r, ok := t.ranks[agentType]; ok {
		return r
	}
	return defaultRank
}

// Decision is the outcome of one arbitration.
type Decision int

const (
	// Accepted means the candidate holds the active slot and may
	// proceed to compose and schedule.
	Accepted Decision = iota
	// Deferred means a higher-or-equal priority incumbent keeps the
	// slot; the request was parked in the conversation queue.
	Deferred
)

func (d Decision) String() string {
	if d == Accepted {
		return "accepted"
	}
	return "deferred"
}

// Arbiter applies the priority rules against the conversation store.
type Arbiter struct {
	table *Table
	conv  store.ConversationStore
}

// New creates an arbiter over the given rank table and store.
func New(table *Table, conv store.ConversationStore) *Arbiter {
	return &Arbiter{table: table, conv: conv}
}

// Rank exposes the table lookup for callers that log priorities.
func (a *Arbiter) Rank(agentType string) int {
	return a.table.Rank(agentType)
}

// Arbitrate decides whether the candidate agent may message the
// contact now. A candidate preempts an incumbent only with a strictly
// higher rank; ties favor the incumbent, except that the incumbent
// itself always proceeds. Deferred requests are parked in the queue
// and never replayed by this engine — a later trigger cycle for the
// same condition re-attempts from scratch.
func (a *Arbiter) Arbitrate(ctx context.Context, contactID, agentID uuid.UUID, agentType, messageKind string, now time.Time) (Decision, error) {
	rank := a.table.Rank(agentType)

	won, err := a.conv.Acquire(ctx, contactID, agentID, rank)
	if err != nil {
		return Deferred, fmt.Errorf("acquire active slot: %w", err)
	}
	if won {
		return Accepted, nil
	}

	req := store.DeferredRequest{
		AgentID:     agentID,
		MessageKind: messageKind,
		QueuedAt:    now,
	}
	if err := a.conv.Defer(ctx, contactID, req); err != nil {
		return Deferred, fmt.Errorf("defer request: %w", err)
	}
	return Deferred, nil
}

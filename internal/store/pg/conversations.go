package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// maxDeferred caps the suppressed-intent queue per contact.
const maxDeferred = 20

// PGConversationStore implements store.ConversationStore backed by
// Postgres. Every mutation is a single conditional UPDATE so that
// concurrent trigger and dispatch sweeps never interleave a stale
// read-modify-write.
type PGConversationStore struct {
	db *sql.DB
}

func NewPGConversationStore(db *sql.DB) *PGConversationStore {
	return &PGConversationStore{db: db}
}

func (s *PGConversationStore) GetOrCreate(ctx context.Context, contactID uuid.UUID) (*store.ConversationState, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_states (contact_id, updated_at)
		 VALUES ($1, now()) ON CONFLICT (contact_id) DO NOTHING`, contactID)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation state: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT contact_id, active_agent_id, active_priority, deferred,
		 sent_today, sent_this_week, last_message_at, last_engaged_at, waiting_until, updated_at
		 FROM conversation_states WHERE contact_id = $1`, contactID)

	var st store.ConversationState
	var deferredJSON []byte
	err = row.Scan(&st.ContactID, &st.ActiveAgentID, &st.ActivePriority, &deferredJSON,
		&st.SentToday, &st.SentThisWeek, &st.LastMessageAt, &st.LastEngagedAt,
		&st.WaitingUntil, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(deferredJSON) > 0 {
		if err := json.Unmarshal(deferredJSON, &st.Deferred); err != nil {
			return nil, fmt.Errorf("decode deferred queue: %w", err)
		}
	}
	return &st, nil
}

// Acquire claims the active slot in one conditional update: it wins
// when the slot is empty, already held by this agent, or held by a
// strictly lower priority. Equal priority keeps the incumbent.
func (s *PGConversationStore) Acquire(ctx context.Context, contactID, agentID uuid.UUID, priority int) (bool, error) {
	if _, err := s.GetOrCreate(ctx, contactID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states
		 SET active_agent_id = $2, active_priority = $3, updated_at = now()
		 WHERE contact_id = $1
		   AND (active_agent_id IS NULL OR active_agent_id = $2 OR active_priority < $3)`,
		contactID, agentID, priority)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Defer appends one entry to the JSONB queue and trims it to the most
// recent maxDeferred entries, all server-side in one statement.
func (s *PGConversationStore) Defer(ctx context.Context, contactID uuid.UUID, req store.DeferredRequest) error {
	entry, err := json.Marshal([]store.DeferredRequest{req})
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states
		 SET deferred = CASE
		     WHEN jsonb_array_length(COALESCE(deferred, '[]'::jsonb) || $2::jsonb) > $3
		     THEN (COALESCE(deferred, '[]'::jsonb) || $2::jsonb) - 0
		     ELSE COALESCE(deferred, '[]'::jsonb) || $2::jsonb
		 END,
		 updated_at = now()
		 WHERE contact_id = $1`,
		contactID, entry, maxDeferred)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PGConversationStore) RecordSend(ctx context.Context, contactID uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states
		 SET sent_today = sent_today + 1,
		     sent_this_week = sent_this_week + 1,
		     last_message_at = $2,
		     updated_at = now()
		 WHERE contact_id = $1`,
		contactID, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PGConversationStore) SetWaitingUntil(ctx context.Context, contactID uuid.UUID, until *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states SET waiting_until = $2, updated_at = now() WHERE contact_id = $1`,
		contactID, until)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PGConversationStore) ResetDaily(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states SET sent_today = 0, updated_at = now() WHERE sent_today <> 0`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PGConversationStore) ResetWeekly(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states SET sent_this_week = 0, updated_at = now() WHERE sent_this_week <> 0`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

package sqlite

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

const maxDeferred = 20

// ConversationStore implements store.ConversationStore backed by
// SQLite. Conditional updates are single statements; the deferred
// queue append runs inside an immediate transaction because SQLite
// has no server-side JSON array trim.
type ConversationStore struct {
	db *sql.DB
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) GetOrCreate(ctx context.Context, contactID uuid.UUID) (*store.ConversationState, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_states (contact_id, updated_at)
		 VALUES (?, ?) ON CONFLICT (contact_id) DO NOTHING`,
		contactID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("ensure conversation state: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT contact_id, active_agent_id, active_priority, deferred,
		 sent_today, sent_this_week, last_message_at, last_engaged_at, waiting_until, updated_at
		 FROM conversation_states WHERE contact_id = ?`, contactID)

	var st store.ConversationState
	var deferredJSON string
	err = row.Scan(&st.ContactID, &st.ActiveAgentID, &st.ActivePriority, &deferredJSON,
		&st.SentToday, &st.SentThisWeek, &st.LastMessageAt, &st.LastEngagedAt,
		&st.WaitingUntil, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if deferredJSON != "" && deferredJSON != "[]" {
		if err := json.Unmarshal([]byte(deferredJSON), &st.Deferred); err != nil {
			return nil, fmt.Errorf("decode deferred queue: %w", err)
		}
	}
	return &st, nil
}

func (s *ConversationStore) Acquire(ctx context.Context, contactID, agentID uuid.UUID, priority int) (bool, error) {
	if _, err := s.GetOrCreate(ctx, contactID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states
		 SET active_agent_id = ?, active_priority = ?, updated_at = ?
		 WHERE contact_id = ?
		   AND (active_agent_id IS NULL OR active_agent_id = ? OR active_priority < ?)`,
		agentID, priority, time.Now(), contactID, agentID, priority)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *ConversationStore) Defer(ctx context.Context, contactID uuid.UUID, req store.DeferredRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var deferredJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT deferred FROM conversation_states WHERE contact_id = ?`, contactID).Scan(&deferredJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	var queue []store.DeferredRequest
	if deferredJSON != "" && deferredJSON != "[]" {
		if err := json.Unmarshal([]byte(deferredJSON), &queue); err != nil {
			return fmt.Errorf("decode deferred queue: %w", err)
		}
	}
	queue = append(queue, req)
	if len(queue) > maxDeferred {
		queue = queue[len(queue)-maxDeferred:]
	}
	enc, err := json.Marshal(queue)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversation_states SET deferred = ?, updated_at = ? WHERE contact_id = ?`,
		string(enc), time.Now(), contactID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *ConversationStore) RecordSend(ctx context.Context, contactID uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states
		 SET sent_today = sent_today + 1,
		     sent_this_week = sent_this_week + 1,
		     last_message_at = ?,
		     updated_at = ?
		 WHERE contact_id = ?`,
		at, time.Now(), contactID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ConversationStore) SetWaitingUntil(ctx context.Context, contactID uuid.UUID, until *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states SET waiting_until = ?, updated_at = ? WHERE contact_id = ?`,
		until, time.Now(), contactID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ConversationStore) ResetDaily(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states SET sent_today = 0, updated_at = ? WHERE sent_today <> 0`,
		time.Now())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *ConversationStore) ResetWeekly(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversation_states SET sent_this_week = 0, updated_at = ? WHERE sent_this_week <> 0`,
		time.Now())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

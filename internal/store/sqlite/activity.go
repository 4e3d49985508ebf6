package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// ActivityStore implements store.ActivityStore backed by SQLite.
type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Append(ctx context.Context, rec *store.ActivityRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = store.GenNewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return fmt.Errorf("encode activity detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, contact_id, agent_id, kind, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ContactID, rec.AgentID, rec.Kind, string(detail), rec.CreatedAt)
	return err
}

func (s *ActivityStore) ListByKinds(ctx context.Context, contactID uuid.UUID, kinds []string, limit int) ([]store.ActivityRecord, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(kinds)), ", ")
	args := make([]any, 0, len(kinds)+2)
	args = append(args, contactID)
	for _, k := range kinds {
		args = append(args, k)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, agent_id, kind, detail, created_at
		 FROM activity_log
		 WHERE contact_id = ? AND kind IN (`+placeholders+`)
		 ORDER BY created_at DESC
		 LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ActivityRecord
	for rows.Next() {
		var rec store.ActivityRecord
		var detail sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ContactID, &rec.AgentID, &rec.Kind, &detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if detail.Valid && detail.String != "" && detail.String != "null" {
			if err := json.Unmarshal([]byte(detail.String), &rec.Detail); err != nil {
				return nil, fmt.Errorf("decode activity detail: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ActivityStore) AppendConversation(ctx context.Context, e *store.ConversationEntry) error {
	if e.ID == uuid.Nil {
		e.ID = store.GenNewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_entries (id, contact_id, role, body, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ContactID, e.Role, e.Body, e.CreatedAt)
	return err
}

func (s *ActivityStore) RecentConversation(ctx context.Context, contactID uuid.UUID, limit int) ([]store.ConversationEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, role, body, created_at FROM (
		     SELECT id, contact_id, role, body, created_at
		     FROM conversation_entries
		     WHERE contact_id = ?
		     ORDER BY created_at DESC
		     LIMIT ?
		 ) ORDER BY created_at`,
		contactID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ConversationEntry
	for rows.Next() {
		var e store.ConversationEntry
		if err := rows.Scan(&e.ID, &e.ContactID, &e.Role, &e.Body, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

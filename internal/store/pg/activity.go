package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// PGActivityStore implements store.ActivityStore backed by Postgres.
type PGActivityStore struct {
	db *sql.DB
}

func NewPGActivityStore(db *sql.DB) *PGActivityStore {
	return &PGActivityStore{db: db}
}

func (s *PGActivityStore) Append(ctx context.Context, rec *store.ActivityRecord) error {
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
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.ContactID, rec.AgentID, rec.Kind, detail, rec.CreatedAt)
	return err
}

func (s *PGActivityStore) ListByKinds(ctx context.Context, contactID uuid.UUID, kinds []string, limit int) ([]store.ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, agent_id, kind, detail, created_at
		 FROM activity_log
		 WHERE contact_id = $1 AND kind = ANY($2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		contactID, pq.Array(kinds), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ActivityRecord
	for rows.Next() {
		var rec store.ActivityRecord
		var detail []byte
		if err := rows.Scan(&rec.ID, &rec.ContactID, &rec.AgentID, &rec.Kind, &detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &rec.Detail); err != nil {
				return nil, fmt.Errorf("decode activity detail: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGActivityStore) AppendConversation(ctx context.Context, e *store.ConversationEntry) error {
	if e.ID == uuid.Nil {
		e.ID = store.GenNewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_entries (id, contact_id, role, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ContactID, e.Role, e.Body, e.CreatedAt)
	return err
}

func (s *PGActivityStore) RecentConversation(ctx context.Context, contactID uuid.UUID, limit int) ([]store.ConversationEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, role, body, created_at FROM (
		     SELECT id, contact_id, role, body, created_at
		     FROM conversation_entries
		     WHERE contact_id = $1
		     ORDER BY created_at DESC
		     LIMIT $2
		 ) recent ORDER BY created_at`,
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

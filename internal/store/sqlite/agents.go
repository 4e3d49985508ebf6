package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// AgentStore implements store.AgentStore backed by SQLite.
type AgentStore struct {
	db *sql.DB
}

func NewAgentStore(db *sql.DB) *AgentStore {
	return &AgentStore{db: db}
}

func (s *AgentStore) Get(ctx context.Context, id uuid.UUID) (*store.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, contact_id, agent_type, status, assigned_at, expires_at, messages_sent, last_engaged_at
		 FROM agents WHERE id = ?`, id)

	var a store.Agent
	err := row.Scan(&a.ID, &a.ContactID, &a.Type, &a.Status, &a.AssignedAt,
		&a.ExpiresAt, &a.MessagesSent, &a.LastEngagedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AgentStore) Create(ctx context.Context, a *store.Agent) error {
	if a.ID == uuid.Nil {
		a.ID = store.GenNewID()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	if a.Status == "" {
		a.Status = store.AgentActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, contact_id, agent_type, status, assigned_at, expires_at, messages_sent, last_engaged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ContactID, a.Type, a.Status, a.AssignedAt, a.ExpiresAt, a.MessagesSent, a.LastEngagedAt)
	return err
}

func (s *AgentStore) ListActive(ctx context.Context) ([]store.AgentWithContact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.contact_id, a.agent_type, a.status, a.assigned_at, a.expires_at, a.messages_sent, a.last_engaged_at,
		 COALESCE(c.first_name, ''), COALESCE(c.phone, ''), COALESCE(c.email, ''), COALESCE(c.engagement_score, 0),
		 COALESCE(c.lifetime_spend, 0), c.last_login_at
		 FROM agents a
		 LEFT JOIN contacts c ON c.id = a.contact_id
		 WHERE a.status = 'active'
		 ORDER BY a.assigned_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.AgentWithContact
	for rows.Next() {
		var awc store.AgentWithContact
		a := &awc.Agent
		c := &awc.Contact
		if err := rows.Scan(
			&a.ID, &a.ContactID, &a.Type, &a.Status, &a.AssignedAt, &a.ExpiresAt,
			&a.MessagesSent, &a.LastEngagedAt,
			&c.FirstName, &c.Phone, &c.Email, &c.EngagementScore, &c.LifetimeSpend, &c.LastLoginAt,
		); err != nil {
			return nil, err
		}
		c.ID = a.ContactID
		out = append(out, awc)
	}
	return out, rows.Err()
}

func (s *AgentStore) RecordSend(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET messages_sent = messages_sent + 1, last_engaged_at = ? WHERE id = ?`,
		at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *AgentStore) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET status = 'expired' WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < ?`,
		now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

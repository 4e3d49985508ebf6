package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// ContactStore implements store.ContactStore backed by SQLite.
type ContactStore struct {
	db *sql.DB
}

func NewContactStore(db *sql.DB) *ContactStore {
	return &ContactStore{db: db}
}

func (s *ContactStore) Get(ctx context.Context, id uuid.UUID) (*store.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(first_name, ''), COALESCE(phone, ''), COALESCE(email, ''),
		 engagement_score, lifetime_spend, last_login_at
		 FROM contacts WHERE id = ?`, id)

	var c store.Contact
	err := row.Scan(&c.ID, &c.FirstName, &c.Phone, &c.Email,
		&c.EngagementScore, &c.LifetimeSpend, &c.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ContactStore) Upsert(ctx context.Context, c *store.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = store.GenNewID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, first_name, phone, email, engagement_score, lifetime_spend, last_login_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   first_name = excluded.first_name,
		   phone = excluded.phone,
		   email = excluded.email,
		   engagement_score = excluded.engagement_score,
		   lifetime_spend = excluded.lifetime_spend,
		   last_login_at = excluded.last_login_at`,
		c.ID, c.FirstName, c.Phone, c.Email, c.EngagementScore, c.LifetimeSpend, c.LastLoginAt)
	return err
}

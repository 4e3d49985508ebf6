package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// PGContactStore implements store.ContactStore backed by Postgres.
type PGContactStore struct {
	db *sql.DB
}

func NewPGContactStore(db *sql.DB) *PGContactStore {
	return &PGContactStore{db: db}
}

func (s *PGContactStore) Get(ctx context.Context, id uuid.UUID) (*store.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(first_name, ''), COALESCE(phone, ''), COALESCE(email, ''),
		 engagement_score, lifetime_spend, last_login_at
		 FROM contacts WHERE id = $1`, id)

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

func (s *PGContactStore) Upsert(ctx context.Context, c *store.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = store.GenNewID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, first_name, phone, email, engagement_score, lifetime_spend, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   first_name = EXCLUDED.first_name,
		   phone = EXCLUDED.phone,
		   email = EXCLUDED.email,
		   engagement_score = EXCLUDED.engagement_score,
		   lifetime_spend = EXCLUDED.lifetime_spend,
		   last_login_at = EXCLUDED.last_login_at`,
		c.ID, c.FirstName, c.Phone, c.Email, c.EngagementScore, c.LifetimeSpend, c.LastLoginAt)
	return err
}

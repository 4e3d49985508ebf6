package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// PGMessageStore implements store.MessageStore backed by Postgres.
// ClaimDue uses FOR UPDATE SKIP LOCKED so overlapping dispatcher
// passes partition the due set instead of blocking on each other.
type PGMessageStore struct {
	db *sql.DB
}

func NewPGMessageStore(db *sql.DB) *PGMessageStore {
	return &PGMessageStore{db: db}
}

const messageColumns = `id, contact_id, agent_id, kind, channel, scheduled_for, status,
	subject, body, retry_count, error_message, sent_at, created_at`

func (s *PGMessageStore) Create(ctx context.Context, m *store.ScheduledMessage) error {
	if m.ID == uuid.Nil {
		m.ID = store.GenNewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Status == "" {
		m.Status = store.MessagePending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_messages
		 (id, contact_id, agent_id, kind, channel, scheduled_for, status, subject, body, retry_count, error_message, sent_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.ContactID, m.AgentID, m.Kind, m.Channel, m.ScheduledFor, m.Status,
		nullStr(m.Subject), m.Body, m.RetryCount, nullStr(m.ErrorMessage), m.SentAt, m.CreatedAt,
	)
	return err
}

func (s *PGMessageStore) Get(ctx context.Context, id uuid.UUID) (*store.ScheduledMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM scheduled_messages WHERE id = $1`, id)
	m, err := scanMessage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return m, err
}

func (s *PGMessageStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]store.ScheduledMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE scheduled_messages
		 SET status = 'claimed', claimed_at = $1
		 WHERE id IN (
		     SELECT id FROM scheduled_messages
		     WHERE status = 'pending' AND scheduled_for <= $1
		     ORDER BY scheduled_for
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+messageColumns,
		now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ScheduledMessage
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *PGMessageStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.transition(ctx,
		`UPDATE scheduled_messages SET status = 'sent', sent_at = $2, claimed_at = NULL
		 WHERE id = $1 AND status = 'claimed'`, id, at)
}

func (s *PGMessageStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.transition(ctx,
		`UPDATE scheduled_messages
		 SET status = 'failed', error_message = $2, retry_count = retry_count + 1, claimed_at = NULL
		 WHERE id = $1 AND status = 'claimed'`, id, reason)
}

func (s *PGMessageStore) Release(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx,
		`UPDATE scheduled_messages SET status = 'pending', claimed_at = NULL
		 WHERE id = $1 AND status = 'claimed'`, id)
}

func (s *PGMessageStore) ReleaseStale(ctx context.Context, staleBefore time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_messages SET status = 'pending', claimed_at = NULL
		 WHERE status = 'claimed' AND claimed_at < $1`, staleBefore)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PGMessageStore) CountRecentByKind(ctx context.Context, contactID uuid.UUID, kind string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scheduled_messages
		 WHERE contact_id = $1 AND kind = $2 AND created_at >= $3`,
		contactID, kind, since).Scan(&n)
	return n, err
}

func (s *PGMessageStore) transition(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrInvalidTransition
	}
	return nil
}

func scanMessage(scan func(...any) error) (*store.ScheduledMessage, error) {
	var m store.ScheduledMessage
	var subject, errMsg sql.NullString
	if err := scan(
		&m.ID, &m.ContactID, &m.AgentID, &m.Kind, &m.Channel, &m.ScheduledFor, &m.Status,
		&subject, &m.Body, &m.RetryCount, &errMsg, &m.SentAt, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.Subject = subject.String
	m.ErrorMessage = errMsg.String
	return &m, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

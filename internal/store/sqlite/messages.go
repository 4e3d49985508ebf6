package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// MessageStore implements store.MessageStore backed by SQLite.
// SQLite serializes writers, so the claim transaction gives the same
// at-most-once guarantee SKIP LOCKED provides on Postgres.
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

const messageColumns = `id, contact_id, agent_id, kind, channel, scheduled_for, status,
	subject, body, retry_count, error_message, sent_at, created_at`

func (s *MessageStore) Create(ctx context.Context, m *store.ScheduledMessage) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ContactID, m.AgentID, m.Kind, m.Channel, m.ScheduledFor, m.Status,
		nullStr(m.Subject), m.Body, m.RetryCount, nullStr(m.ErrorMessage), m.SentAt, m.CreatedAt)
	return err
}

func (s *MessageStore) Get(ctx context.Context, id uuid.UUID) (*store.ScheduledMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM scheduled_messages WHERE id = ?`, id)
	m, err := scanMessage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return m, err
}

func (s *MessageStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]store.ScheduledMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM scheduled_messages
		 WHERE status = 'pending' AND scheduled_for <= ?
		 ORDER BY scheduled_for
		 LIMIT ?`, now, limit)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	var out []store.ScheduledMessage
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`UPDATE scheduled_messages SET status = 'claimed', claimed_at = ?
			 WHERE id = ? AND status = 'pending'`, now, id)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue // lost to a concurrent pass
		}
		row := tx.QueryRowContext(ctx,
			`SELECT `+messageColumns+` FROM scheduled_messages WHERE id = ?`, id)
		m, err := scanMessage(row.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MessageStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.transition(ctx,
		`UPDATE scheduled_messages SET status = 'sent', sent_at = ?, claimed_at = NULL
		 WHERE id = ? AND status = 'claimed'`, at, id)
}

func (s *MessageStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return s.transition(ctx,
		`UPDATE scheduled_messages
		 SET status = 'failed', error_message = ?, retry_count = retry_count + 1, claimed_at = NULL
		 WHERE id = ? AND status = 'claimed'`, reason, id)
}

func (s *MessageStore) Release(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx,
		`UPDATE scheduled_messages SET status = 'pending', claimed_at = NULL
		 WHERE id = ? AND status = 'claimed'`, id)
}

func (s *MessageStore) ReleaseStale(ctx context.Context, staleBefore time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_messages SET status = 'pending', claimed_at = NULL
		 WHERE status = 'claimed' AND claimed_at < ?`, staleBefore)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *MessageStore) CountRecentByKind(ctx context.Context, contactID uuid.UUID, kind string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scheduled_messages
		 WHERE contact_id = ? AND kind = ? AND created_at >= ?`,
		contactID, kind, since).Scan(&n)
	return n, err
}

func (s *MessageStore) transition(ctx context.Context, query string, args ...any) error {
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

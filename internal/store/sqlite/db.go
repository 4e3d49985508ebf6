// Package sqlite implements the store interfaces on SQLite for
// standalone mode (no Postgres DSN configured). The schema is applied
// at open; WAL mode plus a busy timeout keeps the two sweep loops
// from tripping over SQLITE_BUSY.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenDB opens (and creates, if needed) the standalone database.
func OpenDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// modernc.org/sqlite takes pragmas as _pragma=name(value) pairs,
	// applied to every connection in the pool.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		first_name TEXT,
		phone TEXT,
		email TEXT,
		engagement_score INTEGER NOT NULL DEFAULT 0,
		lifetime_spend INTEGER NOT NULL DEFAULT 0,
		last_login_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		assigned_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP,
		messages_sent INTEGER NOT NULL DEFAULT 0,
		last_engaged_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status);

	CREATE TABLE IF NOT EXISTS conversation_states (
		contact_id TEXT PRIMARY KEY,
		active_agent_id TEXT,
		active_priority INTEGER NOT NULL DEFAULT 0,
		deferred TEXT NOT NULL DEFAULT '[]',
		sent_today INTEGER NOT NULL DEFAULT 0,
		sent_this_week INTEGER NOT NULL DEFAULT 0,
		last_message_at TIMESTAMP,
		last_engaged_at TIMESTAMP,
		waiting_until TIMESTAMP,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scheduled_messages (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		channel TEXT NOT NULL,
		scheduled_for TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		subject TEXT,
		body TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		sent_at TIMESTAMP,
		claimed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_due ON scheduled_messages(status, scheduled_for);
	CREATE INDEX IF NOT EXISTS idx_messages_contact_kind ON scheduled_messages(contact_id, kind, created_at);

	CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL,
		agent_id TEXT,
		kind TEXT NOT NULL,
		detail TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_contact_kind ON activity_log(contact_id, kind, created_at);

	CREATE TABLE IF NOT EXISTS conversation_entries (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL,
		role TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_contact ON conversation_entries(contact_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

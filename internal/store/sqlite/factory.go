package sqlite

import (
	"fmt"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// NewSQLiteStores creates all stores backed by SQLite (standalone mode).
func NewSQLiteStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return &store.Stores{
		Agents:        NewAgentStore(db),
		Contacts:      NewContactStore(db),
		Conversations: NewConversationStore(db),
		Messages:      NewMessageStore(db),
		Activity:      NewActivityStore(db),
		Close:         db.Close,
	}, nil
}

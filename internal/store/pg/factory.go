package pg

import (
	"fmt"

	"github.com/nextlevelbuilder/outreach/internal/store"
)

// NewPGStores creates all stores backed by Postgres (managed mode).
func NewPGStores(cfg store.StoreConfig) (*store.Stores, error) {
	db, err := OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return &store.Stores{
		Agents:        NewPGAgentStore(db),
		Contacts:      NewPGContactStore(db),
		Conversations: NewPGConversationStore(db),
		Messages:      NewPGMessageStore(db),
		Activity:      NewPGActivityStore(db),
		Close:         db.Close,
	}, nil
}

package bot

import (
	"fmt"
	"log/slog"

	"github.com/xiaoyunbot/xiaoyun/pkg/xiaoyun/session"
)

// NewSessionStore builds the configured session store, seeded with the
// persona priming exchange.
func NewSessionStore(cfg StoreConfig, seed []session.Entry, logger *slog.Logger) (session.Store, error) {
	switch cfg.Type {
	case "memory", "":
		return session.NewMemoryStore(seed, logger), nil
	case "sqlite":
		store, err := session.NewSQLiteStore(cfg.Path, seed, logger)
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

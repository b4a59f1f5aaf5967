package store

import (
	"context"
	"fmt"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/driver"
	"github.com/rs/zerolog"
)

// Open returns the backend selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "memgraph":
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			return nil, err
		}
		if err := d.BuildIndices(ctx); err != nil {
			_ = d.Close(ctx)
			return nil, err
		}
		return NewGraphStore(d), nil
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.SQLite.Path)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

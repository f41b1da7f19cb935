package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/etotom/safarov-shop/internal/config"
	"github.com/etotom/safarov-shop/internal/docstore"
)

// OpenBackend returns the document backend selected by cfg.Store.Backend.
// The postgres backend has its schema migrated up before it is returned.
func OpenBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (docstore.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		b, err := docstore.NewFileBackend(cfg.Store.DataDir)
		if err != nil {
			return nil, err
		}
		log.Info("using file store", "dir", cfg.Store.DataDir)
		return b, nil

	case config.BackendPostgres:
		db, err := NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		applied, err := Migrate(ctx, db, "up")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("using postgres store", "migrations", len(applied))
		return NewPostgresBackend(db), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

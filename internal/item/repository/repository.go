// Package repository persists the item collection as one whole document.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"itemstore/config"
	"itemstore/config/database"
	"itemstore/internal/item/model"
)

// Repository reads and replaces the entire collection. Implementations must
// make Save atomic with respect to Load.
type Repository interface {
	// Load returns the persisted collection, or an empty one if nothing has
	// been persisted yet.
	Load(ctx context.Context) (model.Collection, error)

	// Save replaces the persisted collection in full.
	Save(ctx context.Context, items model.Collection) error

	// Close releases backend resources.
	Close() error
}

// Open creates a Repository for the configured backend.
//
//	"file"     - JSON array in cfg.DataFile (default)
//	"postgres" - one row in the collections table at cfg.DSN
//	"sqlite"   - one row in the collections table in cfg.SQLitePath
func Open(ctx context.Context, cfg config.StoreConfig) (Repository, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		repo, err := NewFileRepository(cfg.DataFile)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendPostgres:
		db, err := database.Connect(ctx, "postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return openSQL(ctx, db, Postgres, cfg.Key)
	case config.BackendSQLite:
		db, err := database.Connect(ctx, "sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		// One writer at a time; the store already serializes access.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, err
		}
		return openSQL(ctx, db, SQLite, cfg.Key)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Backend)
	}
}

func openSQL(ctx context.Context, db *sql.DB, dialect Dialect, key string) (Repository, error) {
	repo, err := NewSQLRepository(ctx, db, dialect, key)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"itemstore/internal/item/model"
	"itemstore/pkg/logger"
)

// Dialect holds the statements that differ between SQL backends.
type Dialect struct {
	Name   string
	Schema string
	Select string
	Upsert string
}

var (
	Postgres = Dialect{
		Name: "postgres",
		Schema: `CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
		Select: `SELECT content FROM collections WHERE name = $1`,
		Upsert: `INSERT INTO collections (name, content, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
	}

	SQLite = Dialect{
		Name: "sqlite",
		Schema: `CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
		Select: `SELECT content FROM collections WHERE name = ?`,
		Upsert: `INSERT INTO collections (name, content, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
	}
)

// SQLRepository stores the whole collection document in one row of the
// collections table, keyed by name. Save is a single upsert statement.
type SQLRepository struct {
	DB      *sql.DB
	dialect Dialect
	key     string
}

// NewSQLRepository wraps db and creates the collections table if needed.
func NewSQLRepository(ctx context.Context, db *sql.DB, dialect Dialect, key string) (*SQLRepository, error) {
	if key == "" {
		key = "items"
	}
	r := &SQLRepository{DB: db, dialect: dialect, key: key}
	if err := r.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, r.dialect.Schema); err != nil {
		logger.Sugar.Errorf("Failed to create collections table (%s): %v", r.dialect.Name, err)
		return err
	}
	return nil
}

func (r *SQLRepository) Load(ctx context.Context) (model.Collection, error) {
	var content string
	err := r.DB.QueryRowContext(ctx, r.dialect.Select, r.key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Collection{}, nil
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load collection %s: %v", r.key, err)
		return nil, fmt.Errorf("%w: query collection %s: %v", model.ErrCorruptStore, r.key, err)
	}
	items, err := decodeCollection([]byte(content))
	if err != nil {
		logger.Sugar.Errorf("Failed to parse collection %s: %v", r.key, err)
		return nil, err
	}
	return items, nil
}

func (r *SQLRepository) Save(ctx context.Context, items model.Collection) error {
	data, err := EncodeCollection(items)
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, r.dialect.Upsert, r.key, string(data)); err != nil {
		logger.Sugar.Errorf("Failed to save collection %s: %v", r.key, err)
		return fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *SQLRepository) Close() error {
	return r.DB.Close()
}

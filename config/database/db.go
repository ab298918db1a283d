package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"itemstore/pkg/logger"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// Connect opens a database handle for driver ("postgres" or "sqlite3") and
// pings it, retrying a few times to ride out temporary network blips.
func Connect(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Sugar.Infof("Successfully connected to the %s database", driver)
			return db, nil
		}
		if i == pingAttempts-1 {
			break
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", pingBackoff, err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(pingBackoff):
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to %s database after %d attempts: %w", driver, pingAttempts, err)
}

package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
)

// NewDB opens a postgres connection pool and waits for the database to become
// reachable. Startup races with the database in container environments, so the
// initial ping is retried with exponential backoff for up to 30 seconds.
func NewDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	ping := func() error {
		if pingErr := db.Ping(); pingErr != nil {
			slog.Warn("database not ready, retrying", "error", pingErr)
			return pingErr
		}
		return nil
	}
	if err := backoff.Retry(ping, b); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	return db, nil
}

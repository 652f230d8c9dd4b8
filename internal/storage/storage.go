// Package storage provides the SQLite durable store for warden.
//
// It holds everything that must survive a daemon restart: the per-day
// activity log, user settings, the persona, intervention stats, and the
// bounded intervention history. The volatile cooldown timestamp lives in
// internal/session instead — it is scoped to the browser session and must
// not survive a restart.
//
// Activity accumulation uses SQL upsert-increment so concurrent commits to
// the same (day, domain) cell never lose an update.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database handle.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path.
// The caller should run Migrate before first use.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	// The modernc driver serializes access per connection; a single
	// connection avoids SQLITE_BUSY between the tracker and the engine.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode = WAL`, `PRAGMA foreign_keys = ON`} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	return &Store{db: db, logger: logger}, nil
}

// Ping checks connectivity to the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts down the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset clears all persistent state, returning the daemon to the
// onboarding state. Applied migrations are kept.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"activity", "settings", "persona", "stats", "interventions"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("storage: reset %s: %w", table, err)
		}
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/thehen/warden/internal/model"
)

// RecordIntervened increments the day's interventions-dispatched counter.
func (s *Store) RecordIntervened(ctx context.Context, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stats (day, intervened, complied) VALUES (?, 1, 0)
		ON CONFLICT (day) DO UPDATE SET intervened = intervened + 1
	`, day)
	if err != nil {
		return fmt.Errorf("storage: record intervened %s: %w", day, err)
	}
	return nil
}

// RecordComplied increments the day's compliance counter. It is not clamped
// to the intervened counter: a compliance signal that lands after midnight
// counts against the new day.
func (s *Store) RecordComplied(ctx context.Context, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stats (day, intervened, complied) VALUES (?, 0, 1)
		ON CONFLICT (day) DO UPDATE SET complied = complied + 1
	`, day)
	if err != nil {
		return fmt.Errorf("storage: record complied %s: %w", day, err)
	}
	return nil
}

// StatsFor returns the day's counters. A day with no row reads as zeros.
func (s *Store) StatsFor(ctx context.Context, day string) (model.Stats, error) {
	var stats model.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT intervened, complied FROM stats WHERE day = ?`, day,
	).Scan(&stats.InterventionsToday, &stats.InterventionsComplied)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Stats{}, nil
	}
	if err != nil {
		return model.Stats{}, fmt.Errorf("storage: stats for %s: %w", day, err)
	}
	return stats, nil
}

// ResetStats zeroes the day's counters. Called when onboarding re-saves
// settings, matching a fresh persona starting from a clean slate.
func (s *Store) ResetStats(ctx context.Context, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stats (day, intervened, complied) VALUES (?, 0, 0)
		ON CONFLICT (day) DO UPDATE SET intervened = 0, complied = 0
	`, day)
	if err != nil {
		return fmt.Errorf("storage: reset stats %s: %w", day, err)
	}
	return nil
}

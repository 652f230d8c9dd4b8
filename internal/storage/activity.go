package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddActivity adds elapsed time to the (day, domain) activity cell, creating
// it on first write. The increment happens inside the database, so two
// interleaved commits to the same cell both land; the accumulated value only
// ever grows within a day.
func (s *Store) AddActivity(ctx context.Context, day, domain string, elapsed time.Duration) error {
	if elapsed < 0 {
		return fmt.Errorf("storage: add activity: negative elapsed %s", elapsed)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (day, domain, ms) VALUES (?, ?, ?)
		ON CONFLICT (day, domain) DO UPDATE SET ms = ms + excluded.ms
	`, day, domain, elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("storage: add activity %s/%s: %w", day, domain, err)
	}
	return nil
}

// ActivityFor returns the accumulated time for a (day, domain) cell.
// A cell that was never written reads as zero, not ErrNotFound.
func (s *Store) ActivityFor(ctx context.Context, day, domain string) (time.Duration, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT ms FROM activity WHERE day = ? AND domain = ?`, day, domain,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: activity for %s/%s: %w", day, domain, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// DayActivity returns all per-domain accumulated time for a day,
// largest first.
func (s *Store) DayActivity(ctx context.Context, day string) (map[string]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, ms FROM activity WHERE day = ? ORDER BY ms DESC`, day)
	if err != nil {
		return nil, fmt.Errorf("storage: day activity %s: %w", day, err)
	}
	defer rows.Close()

	out := make(map[string]time.Duration)
	for rows.Next() {
		var domain string
		var ms int64
		if err := rows.Scan(&domain, &ms); err != nil {
			return nil, fmt.Errorf("storage: scan day activity: %w", err)
		}
		out[domain] = time.Duration(ms) * time.Millisecond
	}
	return out, rows.Err()
}

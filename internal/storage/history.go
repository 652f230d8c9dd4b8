package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thehen/warden/internal/model"
)

// RecordIntervention appends an intervention to the history and evicts the
// oldest entries beyond the cap.
func (s *Store) RecordIntervention(ctx context.Context, rec model.Intervention) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO interventions (id, occurred_at, domain, message)
		VALUES (?, ?, ?, ?)
	`, rec.ID.String(), rec.OccurredAt.UnixMilli(), rec.Domain, rec.Message); err != nil {
		return fmt.Errorf("storage: record intervention: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM interventions WHERE id NOT IN (
			SELECT id FROM interventions ORDER BY occurred_at DESC LIMIT ?
		)
	`, model.HistoryCap); err != nil {
		return fmt.Errorf("storage: trim intervention history: %w", err)
	}
	return nil
}

// History returns up to limit interventions, most recent first.
// Limit values outside (0, HistoryCap] are treated as HistoryCap.
func (s *Store) History(ctx context.Context, limit int) ([]model.Intervention, error) {
	if limit <= 0 || limit > model.HistoryCap {
		limit = model.HistoryCap
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, domain, message
		FROM interventions ORDER BY occurred_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: history: %w", err)
	}
	defer rows.Close()

	var out []model.Intervention
	for rows.Next() {
		var rec model.Intervention
		var id string
		var occurredAt int64
		if err := rows.Scan(&id, &occurredAt, &rec.Domain, &rec.Message); err != nil {
			return nil, fmt.Errorf("storage: scan intervention: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("storage: parse intervention id: %w", err)
		}
		rec.OccurredAt = time.UnixMilli(occurredAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

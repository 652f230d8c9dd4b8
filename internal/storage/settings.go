package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thehen/warden/internal/model"
)

// SaveSettings stores the onboarding profile, replacing any previous one.
func (s *Store) SaveSettings(ctx context.Context, settings model.UserSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, identity, goal, weakness, motivation_style, intensity, api_key)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			identity         = excluded.identity,
			goal             = excluded.goal,
			weakness         = excluded.weakness,
			motivation_style = excluded.motivation_style,
			intensity        = excluded.intensity,
			api_key          = excluded.api_key
	`, settings.Identity, settings.Goal, settings.Weakness,
		settings.MotivationStyle, settings.Intensity, settings.APIKey)
	if err != nil {
		return fmt.Errorf("storage: save settings: %w", err)
	}
	return nil
}

// LoadSettings returns the saved onboarding profile, or ErrNotFound before
// onboarding completes.
func (s *Store) LoadSettings(ctx context.Context) (model.UserSettings, error) {
	var settings model.UserSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT identity, goal, weakness, motivation_style, intensity, api_key
		FROM settings WHERE id = 1
	`).Scan(&settings.Identity, &settings.Goal, &settings.Weakness,
		&settings.MotivationStyle, &settings.Intensity, &settings.APIKey)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserSettings{}, ErrNotFound
	}
	if err != nil {
		return model.UserSettings{}, fmt.Errorf("storage: load settings: %w", err)
	}
	return settings, nil
}

// SavePersona stores the generated persona, replacing any previous one.
func (s *Store) SavePersona(ctx context.Context, p model.Persona) error {
	phrases, err := json.Marshal(p.Catchphrases)
	if err != nil {
		return fmt.Errorf("storage: marshal catchphrases: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO persona (id, name, tone, catchphrases)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name         = excluded.name,
			tone         = excluded.tone,
			catchphrases = excluded.catchphrases
	`, p.Name, p.Tone, string(phrases))
	if err != nil {
		return fmt.Errorf("storage: save persona: %w", err)
	}
	return nil
}

// LoadPersona returns the saved persona, or ErrNotFound before onboarding
// completes.
func (s *Store) LoadPersona(ctx context.Context) (model.Persona, error) {
	var p model.Persona
	var phrases string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, tone, catchphrases FROM persona WHERE id = 1`,
	).Scan(&p.Name, &p.Tone, &phrases)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Persona{}, ErrNotFound
	}
	if err != nil {
		return model.Persona{}, fmt.Errorf("storage: load persona: %w", err)
	}
	if err := json.Unmarshal([]byte(phrases), &p.Catchphrases); err != nil {
		return model.Persona{}, fmt.Errorf("storage: unmarshal catchphrases: %w", err)
	}
	return p, nil
}

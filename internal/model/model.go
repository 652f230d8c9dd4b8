// Package model defines the domain types shared across warden components.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryCap is the maximum number of intervention records retained.
const HistoryCap = 50

// DayKey returns the calendar-day key used for activity and stats rows.
// Days are local: the user's "today" follows their wall clock, not UTC.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ActiveSession is the tracker's transient view of the focused tab.
// Domain and StartedAt are either both set or both zero: an idle session
// (internal page, unparsable URL, no tab) has a TabID but no domain.
type ActiveSession struct {
	TabID     int64
	Domain    string
	StartedAt time.Time
}

// Idle reports whether the session is attributing time to a domain.
func (s ActiveSession) Idle() bool {
	return s.Domain == ""
}

// Elapsed returns the time attributed to the session's domain so far.
// Zero when idle.
func (s ActiveSession) Elapsed(now time.Time) time.Duration {
	if s.Idle() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// UserSettings is the onboarding profile. Immutable once saved except via
// an explicit re-save or a full reset.
type UserSettings struct {
	Identity        string `json:"identity"`
	Goal            string `json:"goal"`
	Weakness        string `json:"weakness"`
	MotivationStyle string `json:"motivation_style"`
	Intensity       string `json:"intensity"`
	APIKey          string `json:"api_key,omitempty"`
}

// Validate checks the fields required to build a persona.
func (s UserSettings) Validate() error {
	if strings.TrimSpace(s.Goal) == "" {
		return fmt.Errorf("model: settings: goal is required")
	}
	if strings.TrimSpace(s.MotivationStyle) == "" {
		return fmt.Errorf("model: settings: motivation_style is required")
	}
	return nil
}

// HasLiveCredential reports whether the saved completion-API key looks like
// a real key rather than a placeholder. Only live-looking keys are worth a
// network round trip; everything else goes straight to the local template.
func (s UserSettings) HasLiveCredential() bool {
	return strings.HasPrefix(s.APIKey, "sk-")
}

// Persona is the named voice used to compose intervention messages.
// Created once at onboarding; read-only afterward until reset.
type Persona struct {
	Name         string   `json:"name"`
	Tone         string   `json:"tone"`
	Catchphrases []string `json:"catchphrases"`
}

// Catchphrase returns the persona's signature line used by the local
// message template.
func (p Persona) Catchphrase() string {
	if len(p.Catchphrases) == 0 {
		return "Watching you."
	}
	return p.Catchphrases[0]
}

// Stats are the per-day intervention counters. Complied is not clamped to
// Today: a compliance signal that lands after midnight counts against the
// new day's row.
type Stats struct {
	InterventionsToday    int `json:"interventions_today"`
	InterventionsComplied int `json:"interventions_complied"`
}

// Intervention is one delivered (or attempted) intervention, kept in a
// bounded most-recent-first history.
type Intervention struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Domain     string    `json:"domain"`
	Message    string    `json:"message"`
}

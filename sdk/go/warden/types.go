package warden

import (
	"time"

	"github.com/google/uuid"
)

// Settings is the onboarding profile sent to PUT /v1/settings.
type Settings struct {
	Identity        string `json:"identity,omitempty"`
	Goal            string `json:"goal"`
	Weakness        string `json:"weakness,omitempty"`
	MotivationStyle string `json:"motivation_style"`
	Intensity       string `json:"intensity,omitempty"`
	APIKey          string `json:"api_key,omitempty"`
}

// Profile is the saved profile returned by GET /v1/settings. The daemon
// never echoes the API key back; APIKeySet reports whether one is stored.
type Profile struct {
	Identity        string   `json:"identity"`
	Goal            string   `json:"goal"`
	Weakness        string   `json:"weakness"`
	MotivationStyle string   `json:"motivation_style"`
	Intensity       string   `json:"intensity"`
	APIKeySet       bool     `json:"api_key_set"`
	Persona         *Persona `json:"persona,omitempty"`
}

// Persona is the named voice used for intervention messages.
type Persona struct {
	Name         string   `json:"name"`
	Tone         string   `json:"tone"`
	Catchphrases []string `json:"catchphrases"`
}

// Stats are the daemon's per-day intervention counters.
type Stats struct {
	InterventionsToday    int `json:"interventions_today"`
	InterventionsComplied int `json:"interventions_complied"`
}

// Intervention is one record from the intervention history.
type Intervention struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Domain     string    `json:"domain"`
	Message    string    `json:"message"`
}

// Activity is today's committed time per domain, in milliseconds.
type Activity struct {
	Day       string           `json:"day"`
	DomainsMs map[string]int64 `json:"domains_ms"`
}

// Health is the daemon health report.
type Health struct {
	Status  string `json:"status"`
	DB      string `json:"db"`
	Version string `json:"version"`
}

package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thehen/warden/internal/model"
)

func TestDayKey(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-03-01 23:30 local is still March 1 even though it is March 2 UTC.
	local := time.Date(2026, 3, 1, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-03-01", model.DayKey(local))
	assert.Equal(t, "2026-03-02", model.DayKey(local.UTC()))
}

func TestActiveSessionIdle(t *testing.T) {
	now := time.Now()

	idle := model.ActiveSession{TabID: 7}
	assert.True(t, idle.Idle())
	assert.Zero(t, idle.Elapsed(now))

	active := model.ActiveSession{TabID: 7, Domain: "reddit.com", StartedAt: now.Add(-90 * time.Second)}
	assert.False(t, active.Idle())
	assert.Equal(t, 90*time.Second, active.Elapsed(now))
}

func TestUserSettingsValidate(t *testing.T) {
	valid := model.UserSettings{Goal: "ship the thesis", MotivationStyle: "strict"}
	require.NoError(t, valid.Validate())

	assert.Error(t, model.UserSettings{MotivationStyle: "strict"}.Validate())
	assert.Error(t, model.UserSettings{Goal: "  ", MotivationStyle: "strict"}.Validate())
	assert.Error(t, model.UserSettings{Goal: "x"}.Validate())
}

func TestHasLiveCredential(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"", false},
		{"mock", false},
		{"sk-or-v1-abcdef", true},
		{"SK-uppercase", false},
	}
	for _, tt := range tests {
		got := model.UserSettings{APIKey: tt.key}.HasLiveCredential()
		assert.Equal(t, tt.want, got, "key %q", tt.key)
	}
}

func TestPersonaCatchphrase(t *testing.T) {
	p := model.Persona{Name: "Sergeant Focus", Catchphrases: []string{"No pain, no gain.", "Get back to work!"}}
	assert.Equal(t, "No pain, no gain.", p.Catchphrase())

	empty := model.Persona{Name: "Nameless"}
	assert.Equal(t, "Watching you.", empty.Catchphrase())
}

// Package persona builds the accountability persona from onboarding settings.
package persona

import (
	"github.com/thehen/warden/internal/model"
)

// profiles maps a motivation style to its persona voice. Styles outside the
// table fall back to "strict".
var profiles = map[string]model.Persona{
	"strict": {
		Name:         "Sergeant Focus",
		Tone:         "strict",
		Catchphrases: []string{"No pain, no gain.", "Get back to work!", "Slacking is for the weak."},
	},
	"gentle": {
		Name:         "Glenda Guide",
		Tone:         "gentle",
		Catchphrases: []string{"Just a gentle nudge.", "You can do this.", "Remember your goal."},
	},
	"brutal": {
		Name:         "The Terminator",
		Tone:         "brutal",
		Catchphrases: []string{"Pathetic.", "Is that all you got?", "You are failing."},
	},
	"guilt": {
		Name:         "Disappointed Mom",
		Tone:         "guilt",
		Catchphrases: []string{"I expected better.", "Don't let me down.", "Think of all the wasted potential."},
	},
	"future_self": {
		Name:         "Future You",
		Tone:         "future_self",
		Catchphrases: []string{"Invest in tomorrow.", "Your future starts now.", "Be the person you want to be."},
	},
	"rewards": {
		Name:         "Coach Cheer",
		Tone:         "rewards",
		Catchphrases: []string{"Eyes on the prize!", "You are doing great!", "Keep it up!"},
	},
}

// Generate derives the persona for the given settings. It is deterministic:
// saving the same settings twice yields an identical persona.
func Generate(settings model.UserSettings) model.Persona {
	p, ok := profiles[settings.MotivationStyle]
	if !ok {
		p = profiles["strict"]
	}
	// Copy the catchphrase slice so callers cannot mutate the table.
	out := model.Persona{Name: p.Name, Tone: p.Tone}
	out.Catchphrases = append(out.Catchphrases, p.Catchphrases...)
	return out
}

// Package intervene composes and delivers persona-voiced interventions and
// records their side effects.
package intervene

import (
	"context"
	"fmt"

	"github.com/thehen/warden/internal/model"
)

// Generator composes an intervention message for a persona, a domain, and
// the minutes spent there today.
type Generator interface {
	Generate(ctx context.Context, persona model.Persona, domain string, minutes int, settings model.UserSettings) (string, error)
}

// TemplateGenerator is the deterministic local strategy. It never fails, so
// it is the floor every other strategy falls back to.
type TemplateGenerator struct{}

// Generate renders the fixed guilt template.
func (TemplateGenerator) Generate(_ context.Context, persona model.Persona, domain string, minutes int, _ model.UserSettings) (string, error) {
	return fmt.Sprintf("You've spent %d minutes on %s. %s", minutes, domain, persona.Catchphrase()), nil
}

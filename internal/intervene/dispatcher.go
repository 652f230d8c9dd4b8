package intervene

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thehen/warden/internal/browser"
	"github.com/thehen/warden/internal/model"
	"github.com/thehen/warden/internal/session"
	"github.com/thehen/warden/internal/storage"
	"github.com/thehen/warden/internal/telemetry"
)

// Dispatcher produces the intervention, delivers it to the page agent, and
// records the cooldown, stats, and history side effects. Side effects are
// committed regardless of delivery success: a closed tab still counts as a
// dispatch for cooldown purposes.
type Dispatcher struct {
	store    *storage.Store
	cooldown *session.Store
	channel  browser.AgentChannel
	remote   Generator
	local    Generator
	logger   *slog.Logger
	now      func() time.Time

	dispatched metric.Int64Counter
}

// New creates a dispatcher. remote may be nil to disable the remote
// strategy entirely (every message then uses the local template).
func New(store *storage.Store, cooldown *session.Store, channel browser.AgentChannel, remote Generator, logger *slog.Logger) *Dispatcher {
	return NewWithClock(store, cooldown, channel, remote, logger, time.Now)
}

// NewWithClock is New with an injectable clock, for tests.
func NewWithClock(store *storage.Store, cooldown *session.Store, channel browser.AgentChannel, remote Generator, logger *slog.Logger, now func() time.Time) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		cooldown: cooldown,
		channel:  channel,
		remote:   remote,
		local:    TemplateGenerator{},
		logger:   logger,
		now:      now,
	}
	d.dispatched, _ = telemetry.Meter("warden/intervene").Int64Counter("warden.interventions.dispatched",
		metric.WithDescription("Interventions dispatched to the page agent"),
	)
	return d
}

// Dispatch composes and delivers an intervention for the given tab/domain.
// A nil persona means onboarding is incomplete and the dispatch is a silent
// no-op. Generation and delivery failures degrade (template fallback,
// swallowed send error); only side-effect persistence failures surface, and
// those too leave the caller's loop running.
func (d *Dispatcher) Dispatch(ctx context.Context, tabID int64, domain string, total time.Duration, persona *model.Persona) error {
	if persona == nil {
		return nil
	}

	settings, err := d.store.LoadSettings(ctx)
	if err != nil {
		// Persona without settings is a reset race; treat as not onboarded.
		d.logger.Warn("dispatch skipped, settings unavailable", "error", err)
		return nil
	}

	minutes := int(total / time.Minute)
	message := d.compose(ctx, *persona, domain, minutes, settings)

	notice := browser.Notice{
		PersonaName: persona.Name,
		Message:     message,
		Tone:        persona.Tone,
	}
	if err := d.channel.ShowIntervention(ctx, tabID, notice); err != nil {
		// Tab may be closed or the stream not yet open. Logged, not retried.
		d.logger.Warn("intervention delivery failed", "tab_id", tabID, "error", err)
	}

	now := d.now()
	day := model.DayKey(now)
	d.cooldown.SetLastIntervention(now)

	if err := d.store.RecordIntervened(ctx, day); err != nil {
		return err
	}
	if err := d.store.RecordIntervention(ctx, model.Intervention{
		ID:         uuid.New(),
		OccurredAt: now,
		Domain:     domain,
		Message:    message,
	}); err != nil {
		return err
	}

	d.dispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain)))
	d.logger.Info("intervention dispatched",
		"tab_id", tabID, "domain", domain, "minutes", minutes, "persona", persona.Name)
	return nil
}

// compose picks the message strategy: remote generation when a live
// credential is configured, the deterministic template otherwise or on any
// remote failure.
func (d *Dispatcher) compose(ctx context.Context, persona model.Persona, domain string, minutes int, settings model.UserSettings) string {
	if d.remote != nil && settings.HasLiveCredential() {
		message, err := d.remote.Generate(ctx, persona, domain, minutes, settings)
		if err == nil {
			return message
		}
		d.logger.Warn("remote generation failed, using template", "error", err)
	}

	message, _ := d.local.Generate(ctx, persona, domain, minutes, settings)
	return message
}

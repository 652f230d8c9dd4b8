// Package rules implements the periodic intervention rule engine.
//
// On a fixed interval the engine reads the tracker's live session, adds the
// stored daily total for that domain, and decides whether the user has
// overstayed on a restricted domain. The threshold answers "have they
// overstayed" (monotonic — once true it stays true for the day); the
// cooldown answers "should we nag them right now" (rate-limited). Without
// the cooldown every tick past the threshold would re-trigger.
package rules

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/thehen/warden/internal/model"
	"github.com/thehen/warden/internal/session"
	"github.com/thehen/warden/internal/storage"
	"github.com/thehen/warden/internal/telemetry"
	"github.com/thehen/warden/internal/tracker"
)

// Dispatcher delivers an intervention once the engine decides one is due.
type Dispatcher interface {
	Dispatch(ctx context.Context, tabID int64, domain string, total time.Duration, persona *model.Persona) error
}

// Config holds the compiled-in rule constants.
type Config struct {
	RestrictedDomains []string
	Threshold         time.Duration
	CooldownWindow    time.Duration
	EvaluateInterval  time.Duration
}

// Engine evaluates the threshold/cooldown rule against live activity.
type Engine struct {
	tracker    *tracker.Tracker
	store      *storage.Store
	cooldown   *session.Store
	dispatcher Dispatcher
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	evaluations metric.Int64Counter
	suppressed  metric.Int64Counter
}

// New creates an engine.
func New(tr *tracker.Tracker, store *storage.Store, cooldown *session.Store, dispatcher Dispatcher, cfg Config, logger *slog.Logger) *Engine {
	return NewWithClock(tr, store, cooldown, dispatcher, cfg, logger, time.Now)
}

// NewWithClock is New with an injectable clock, for tests.
func NewWithClock(tr *tracker.Tracker, store *storage.Store, cooldown *session.Store, dispatcher Dispatcher, cfg Config, logger *slog.Logger, now func() time.Time) *Engine {
	e := &Engine{
		tracker:    tr,
		store:      store,
		cooldown:   cooldown,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        now,
	}
	meter := telemetry.Meter("warden/rules")
	e.evaluations, _ = meter.Int64Counter("warden.rules.evaluations",
		metric.WithDescription("Rule evaluations performed"),
	)
	e.suppressed, _ = meter.Int64Counter("warden.rules.suppressed",
		metric.WithDescription("Dispatches suppressed by the cooldown window"),
	)
	return e
}

// Run evaluates on a fixed period until ctx is cancelled. A failed
// evaluation is logged and never stops the loop.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.EvaluateInterval)
	defer ticker.Stop()

	e.logger.Info("rule engine started",
		"interval", e.cfg.EvaluateInterval,
		"threshold", e.cfg.Threshold,
		"cooldown", e.cfg.CooldownWindow,
		"restricted_domains", len(e.cfg.RestrictedDomains))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Evaluate(ctx); err != nil {
				e.logger.Warn("evaluation failed", "error", err)
			}
		}
	}
}

// Evaluate runs one pass of the threshold/cooldown rule against the current
// session. The live total is stored time plus the in-progress session, so
// it is always at least as large as the last committed value.
func (e *Engine) Evaluate(ctx context.Context) error {
	e.evaluations.Add(ctx, 1)

	snap := e.tracker.Snapshot()
	if snap.Idle() {
		return nil
	}

	now := e.now()
	stored, err := e.store.ActivityFor(ctx, model.DayKey(now), snap.Domain)
	if err != nil {
		return err
	}
	total := stored + snap.Elapsed(now)

	if !e.restricted(snap.Domain) || total <= e.cfg.Threshold {
		return nil
	}

	if last, ok := e.cooldown.LastIntervention(); ok && now.Sub(last) < e.cfg.CooldownWindow {
		e.suppressed.Add(ctx, 1)
		e.logger.Debug("intervention cooling down",
			"domain", snap.Domain, "since_last", now.Sub(last))
		return nil
	}

	persona, err := e.loadPersona(ctx)
	if err != nil {
		return err
	}

	return e.dispatcher.Dispatch(ctx, snap.TabID, snap.Domain, total, persona)
}

// loadPersona re-reads the persona on every qualifying evaluation; nil
// means onboarding has not completed and the dispatcher will no-op.
func (e *Engine) loadPersona(ctx context.Context) (*model.Persona, error) {
	p, err := e.store.LoadPersona(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// restricted reports whether the domain matches the static restricted set
// by substring containment, so subdomains match their parent entry.
func (e *Engine) restricted(domain string) bool {
	for _, entry := range e.cfg.RestrictedDomains {
		if strings.Contains(domain, entry) {
			return true
		}
	}
	return false
}

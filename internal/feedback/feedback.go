// Package feedback handles the user-compliance signal from the page agent.
//
// Compliance means the user closed the flagged tab through the intervention
// overlay's own control. Ignoring or dismissing the overlay never reaches
// the daemon, so the compliance counter only grows on explicit action.
package feedback

import (
	"context"
	"log/slog"
	"time"

	"github.com/thehen/warden/internal/browser"
	"github.com/thehen/warden/internal/model"
	"github.com/thehen/warden/internal/session"
	"github.com/thehen/warden/internal/storage"
)

// Handler records compliance and closes the offending tab.
type Handler struct {
	store    *storage.Store
	cooldown *session.Store
	host     browser.TabHost
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a handler.
func New(store *storage.Store, cooldown *session.Store, host browser.TabHost, logger *slog.Logger) *Handler {
	return NewWithClock(store, cooldown, host, logger, time.Now)
}

// NewWithClock is New with an injectable clock, for tests.
func NewWithClock(store *storage.Store, cooldown *session.Store, host browser.TabHost, logger *slog.Logger, now func() time.Time) *Handler {
	return &Handler{
		store:    store,
		cooldown: cooldown,
		host:     host,
		logger:   logger,
		now:      now,
	}
}

// OnCompliance clears the cooldown so an immediate return to the same
// domain re-triggers detection, increments the compliance counter, and asks
// the browser to close the tab. Tab removal failure is logged, not
// propagated: the stats and cooldown effects stand either way.
func (h *Handler) OnCompliance(ctx context.Context, tabID int64) error {
	h.cooldown.ClearLastIntervention()

	if err := h.store.RecordComplied(ctx, model.DayKey(h.now())); err != nil {
		return err
	}

	if err := h.host.RemoveTab(ctx, tabID); err != nil {
		h.logger.Warn("tab removal failed", "tab_id", tabID, "error", err)
	}

	h.logger.Info("compliance recorded", "tab_id", tabID)
	return nil
}

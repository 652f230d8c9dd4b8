// Package tracker owns the active tab session and converts elapsed focus
// time into durable per-day, per-domain activity.
//
// The tracker holds the only transient process state in the system: which
// tab/domain is active and since when. Every tab transition commits the
// outgoing domain's elapsed time to storage before the session is replaced,
// so no interval is ever attributed to two domains.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thehen/warden/internal/browser"
	"github.com/thehen/warden/internal/model"
	"github.com/thehen/warden/internal/storage"
	"github.com/thehen/warden/internal/telemetry"
)

// Tracker maintains the ActiveSession and commits elapsed time on every
// transition. All methods are safe for concurrent use; the mutex covers the
// whole commit-then-replace sequence so an interleaved evaluation never
// observes a half-updated session.
type Tracker struct {
	store  *storage.Store
	host   browser.TabHost
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	session model.ActiveSession

	committedMs metric.Int64Counter
}

// New creates a tracker with an all-zero session.
func New(store *storage.Store, host browser.TabHost, logger *slog.Logger) *Tracker {
	return NewWithClock(store, host, logger, time.Now)
}

// NewWithClock is New with an injectable clock, for tests.
func NewWithClock(store *storage.Store, host browser.TabHost, logger *slog.Logger, now func() time.Time) *Tracker {
	t := &Tracker{
		store:  store,
		host:   host,
		logger: logger,
		now:    now,
	}
	t.committedMs, _ = telemetry.Meter("warden/tracker").Int64Counter("warden.activity.committed_ms",
		metric.WithDescription("Milliseconds of focus time committed to the activity log"),
	)
	return t
}

// OnTabChange handles a tab-focus or navigation event: it commits the
// outgoing session's time and starts a new session for the given tab.
// A tab that cannot be resolved, or whose URL is not web-navigable, yields
// an idle session — internal pages never accrue time.
func (t *Tracker) OnTabChange(ctx context.Context, tabID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.commitLocked(ctx)

	tab, err := t.host.GetTab(ctx, tabID)
	if err != nil {
		if !errors.Is(err, browser.ErrTabNotFound) {
			t.logger.Warn("tab resolution failed", "tab_id", tabID, "error", err)
		}
		t.session = model.ActiveSession{TabID: tabID}
		return
	}

	domain, ok := trackableDomain(tab.URL)
	if !ok {
		t.session = model.ActiveSession{TabID: tabID}
		return
	}

	t.session = model.ActiveSession{TabID: tabID, Domain: domain, StartedAt: t.now()}
	t.logger.Debug("session started", "tab_id", tabID, "domain", domain)
}

// OnTabRemoved handles the active tab being closed: the elapsed time is
// committed (tab removal is an implicit commit trigger) and the tracker
// goes idle until the browser reports the next focused tab. Removal of a
// background tab is a no-op.
func (t *Tracker) OnTabRemoved(ctx context.Context, tabID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.TabID != tabID {
		return
	}
	t.commitLocked(ctx)
	t.session = model.ActiveSession{}
}

// Snapshot returns the current session for rule evaluation.
func (t *Tracker) Snapshot() model.ActiveSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// commitLocked adds the in-progress session's elapsed time to the activity
// log. A failed write is logged and the session is replaced anyway:
// retrying later would double-count the interval against the new session.
func (t *Tracker) commitLocked(ctx context.Context) {
	if t.session.Idle() {
		return
	}

	now := t.now()
	elapsed := t.session.Elapsed(now)
	day := model.DayKey(now)

	if err := t.store.AddActivity(ctx, day, t.session.Domain, elapsed); err != nil {
		t.logger.Warn("activity commit failed, interval lost",
			"domain", t.session.Domain, "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return
	}

	t.committedMs.Add(ctx, elapsed.Milliseconds(),
		metric.WithAttributes(attribute.String("domain", t.session.Domain)))
	t.logger.Debug("activity committed",
		"domain", t.session.Domain, "day", day, "elapsed_ms", elapsed.Milliseconds())
}

// trackableDomain extracts the registrable host from a web-navigable URL.
// Only http and https schemes accrue time.
func trackableDomain(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return host, true
}

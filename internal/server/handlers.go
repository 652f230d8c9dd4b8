package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/thehen/warden/internal/feedback"
	"github.com/thehen/warden/internal/model"
	"github.com/thehen/warden/internal/persona"
	"github.com/thehen/warden/internal/session"
	"github.com/thehen/warden/internal/storage"
	"github.com/thehen/warden/internal/tracker"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	store    *storage.Store
	tracker  *tracker.Tracker
	feedback *feedback.Handler
	broker   *Broker
	cooldown *session.Store
	logger   *slog.Logger
	version  string
	now      func() time.Time
}

// HandlersDeps are the dependencies for NewHandlers.
type HandlersDeps struct {
	Store    *storage.Store
	Tracker  *tracker.Tracker
	Feedback *feedback.Handler
	Broker   *Broker
	Cooldown *session.Store
	Logger   *slog.Logger
	Version  string
	Now      func() time.Time // Defaults to time.Now.
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		store:    deps.Store,
		tracker:  deps.Tracker,
		feedback: deps.Feedback,
		broker:   deps.Broker,
		cooldown: deps.Cooldown,
		logger:   deps.Logger,
		version:  deps.Version,
		now:      now,
	}
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "connected"
	httpStatus := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		status = "unhealthy"
		dbStatus = "disconnected"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, map[string]string{
		"status":  status,
		"db":      dbStatus,
		"version": h.version,
	})
}

type tabEventRequest struct {
	TabID int64  `json:"tab_id"`
	URL   string `json:"url,omitempty"`
}

// HandleTabEvent handles POST /v1/events/tab. The extension reports every
// focus-relevant change through this one endpoint: activation, URL change,
// and window focus. Focus lost is reported as tab_id 0, which the tracker
// cannot resolve and therefore treats as an idle transition, committing the
// open session.
func (h *Handlers) HandleTabEvent(w http.ResponseWriter, r *http.Request) {
	var req tabEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if req.TabID < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "tab_id must not be negative")
		return
	}

	if req.URL != "" {
		h.broker.UpsertTab(req.TabID, req.URL)
	}
	h.tracker.OnTabChange(r.Context(), req.TabID)
	w.WriteHeader(http.StatusAccepted)
}

// HandleTabRemoved handles POST /v1/events/tab/removed.
func (h *Handlers) HandleTabRemoved(w http.ResponseWriter, r *http.Request) {
	var req tabEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if req.TabID <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "tab_id must be positive")
		return
	}

	h.tracker.OnTabRemoved(r.Context(), req.TabID)
	h.broker.DropTab(req.TabID)
	w.WriteHeader(http.StatusAccepted)
}

// HandleCompliance handles POST /v1/agent/compliance.
func (h *Handlers) HandleCompliance(w http.ResponseWriter, r *http.Request) {
	var req tabEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if req.TabID <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "tab_id must be positive")
		return
	}

	if err := h.feedback.OnCompliance(r.Context(), req.TabID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "recording compliance failed")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleAgentStream handles GET /v1/agent/stream (SSE). The extension opens
// one stream per tracked tab and receives show_intervention and close_tab
// commands on it.
func (h *Handlers) HandleAgentStream(w http.ResponseWriter, r *http.Request) {
	tabID, err := strconv.ParseInt(r.URL.Query().Get("tab_id"), 10, 64)
	if err != nil || tabID <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "tab_id query parameter must be a positive integer")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Disable the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe(tabID)
	defer h.broker.Unsubscribe(tabID, ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type settingsResponse struct {
	Identity        string         `json:"identity"`
	Goal            string         `json:"goal"`
	Weakness        string         `json:"weakness"`
	MotivationStyle string         `json:"motivation_style"`
	Intensity       string         `json:"intensity"`
	APIKeySet       bool           `json:"api_key_set"`
	Persona         *model.Persona `json:"persona,omitempty"`
}

// HandleGetSettings handles GET /v1/settings. The completion-API key is
// never echoed back, only whether one is set.
func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.LoadSettings(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", "onboarding not completed")
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "loading settings failed")
		return
	}

	resp := settingsResponse{
		Identity:        settings.Identity,
		Goal:            settings.Goal,
		Weakness:        settings.Weakness,
		MotivationStyle: settings.MotivationStyle,
		Intensity:       settings.Intensity,
		APIKeySet:       settings.APIKey != "",
	}
	if p, err := h.store.LoadPersona(r.Context()); err == nil {
		resp.Persona = &p
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandlePutSettings handles PUT /v1/settings. Saving settings regenerates
// the persona and resets today's intervention counters, matching a fresh
// onboarding.
func (h *Handlers) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.UserSettings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if err := settings.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx := r.Context()
	if err := h.store.SaveSettings(ctx, settings); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "saving settings failed")
		return
	}

	p := persona.Generate(settings)
	if err := h.store.SavePersona(ctx, p); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "saving persona failed")
		return
	}

	if err := h.store.ResetStats(ctx, model.DayKey(h.now())); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "resetting stats failed")
		return
	}

	h.logger.Info("settings saved", "persona", p.Name, "motivation_style", settings.MotivationStyle)
	writeJSON(w, r, http.StatusOK, p)
}

// HandleStats handles GET /v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.StatsFor(r.Context(), model.DayKey(h.now()))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "loading stats failed")
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// HandleHistory handles GET /v1/history. Most recent first; an optional
// limit query parameter caps the page.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := model.HistoryCap
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.store.History(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "loading history failed")
		return
	}
	if records == nil {
		records = []model.Intervention{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"interventions": records})
}

// HandleActivityToday handles GET /v1/activity/today. Milliseconds per
// domain, committed time only: the in-progress session is not included.
func (h *Handlers) HandleActivityToday(w http.ResponseWriter, r *http.Request) {
	day := model.DayKey(h.now())
	activity, err := h.store.DayActivity(r.Context(), day)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "loading activity failed")
		return
	}

	domains := make(map[string]int64, len(activity))
	for domain, d := range activity {
		domains[domain] = d.Milliseconds()
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"day": day, "domains_ms": domains})
}

// HandleReset handles POST /v1/reset: full wipe of settings, persona,
// activity, stats, and history, plus the in-memory cooldown. The tracker's
// live session survives; its next commit simply starts a fresh activity row.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "reset failed")
		return
	}
	h.cooldown.ClearLastIntervention()

	h.logger.Info("full reset performed")
	w.WriteHeader(http.StatusNoContent)
}

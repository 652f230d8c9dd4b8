package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thehen/warden/internal/auth"
	"github.com/thehen/warden/internal/browser"
	"github.com/thehen/warden/internal/feedback"
	"github.com/thehen/warden/internal/model"
	"github.com/thehen/warden/internal/session"
	"github.com/thehen/warden/internal/storage"
	"github.com/thehen/warden/internal/tracker"
	"github.com/thehen/warden/migrations"
)

type testEnv struct {
	srv      *httptest.Server
	store    *storage.Store
	broker   *Broker
	cooldown *session.Store
	clock    time.Time
}

func newTestEnv(t *testing.T, pairingKey string) *testEnv {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "warden.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background(), migrations.FS))

	env := &testEnv{
		store:    store,
		broker:   NewBroker(slog.Default()),
		cooldown: session.New(),
		clock:    time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return env.clock }

	pairing, err := auth.NewPairing(pairingKey)
	require.NoError(t, err)

	tr := tracker.NewWithClock(store, env.broker, slog.Default(), now)
	fb := feedback.NewWithClock(store, env.cooldown, env.broker, slog.Default(), now)

	s := New(Config{
		Store:        store,
		Tracker:      tr,
		Feedback:     fb,
		Broker:       env.broker,
		Cooldown:     env.cooldown,
		Pairing:      pairing,
		Logger:       slog.Default(),
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Version:      "test",
		Now:          now,
	})

	env.srv = httptest.NewServer(s.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

var validSettings = model.UserSettings{
	Identity:        "a novelist",
	Goal:            "finish the book",
	Weakness:        "reddit",
	MotivationStyle: "gentle",
	Intensity:       "mild",
	APIKey:          "sk-or-v1-test",
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t, "")

	// Before onboarding.
	resp := env.do(t, http.MethodGet, "/v1/settings", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Onboard; the response is the generated persona.
	resp = env.do(t, http.MethodPut, "/v1/settings", validSettings)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decodeBody[model.Persona](t, resp)
	assert.Equal(t, "Glenda Guide", p.Name)
	assert.Equal(t, "gentle", p.Tone)

	// Read back; the API key is redacted to a boolean.
	resp = env.do(t, http.MethodGet, "/v1/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "finish the book", got["goal"])
	assert.Equal(t, true, got["api_key_set"])
	assert.NotContains(t, got, "api_key")
	require.NotNil(t, got["persona"])
}

func TestPutSettingsValidation(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPut, "/v1/settings", model.UserSettings{Goal: "g"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, env.srv.URL+"/v1/settings", strings.NewReader("{not json"))
	require.NoError(t, err)
	raw, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestPutSettingsResetsTodayStats(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	day := model.DayKey(env.clock)

	require.NoError(t, env.store.RecordIntervened(ctx, day))

	resp := env.do(t, http.MethodPut, "/v1/settings", validSettings)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats, err := env.store.StatsFor(ctx, day)
	require.NoError(t, err)
	assert.Zero(t, stats.InterventionsToday)
}

func TestTabEventAccruesActivity(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/v1/events/tab", tabEventRequest{TabID: 1, URL: "https://reddit.com/r/all"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	env.clock = env.clock.Add(5 * time.Second)

	// Switching to another tab commits the reddit session.
	resp = env.do(t, http.MethodPost, "/v1/events/tab", tabEventRequest{TabID: 2, URL: "https://example.com/"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/activity/today", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[struct {
		Day       string           `json:"day"`
		DomainsMs map[string]int64 `json:"domains_ms"`
	}](t, resp)
	assert.Equal(t, model.DayKey(env.clock), body.Day)
	assert.Equal(t, int64(5000), body.DomainsMs["reddit.com"])
}

func TestTabEventRejectsBadTabID(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodPost, "/v1/events/tab", tabEventRequest{TabID: -1, URL: "https://reddit.com/"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWindowFocusLostCommits(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/v1/events/tab", tabEventRequest{TabID: 1, URL: "https://reddit.com/"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	env.clock = env.clock.Add(4 * time.Second)

	// tab_id 0 = no tab focused (window blur).
	resp = env.do(t, http.MethodPost, "/v1/events/tab", tabEventRequest{TabID: 0})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ms, err := env.store.ActivityFor(context.Background(), model.DayKey(env.clock), "reddit.com")
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, ms)
}

func TestTabRemovedCommitsAndDrops(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/v1/events/tab", tabEventRequest{TabID: 1, URL: "https://reddit.com/"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	env.clock = env.clock.Add(3 * time.Second)

	resp = env.do(t, http.MethodPost, "/v1/events/tab/removed", tabEventRequest{TabID: 1})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ms, err := env.store.ActivityFor(context.Background(), model.DayKey(env.clock), "reddit.com")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, ms)

	_, err = env.broker.GetTab(context.Background(), 1)
	assert.ErrorIs(t, err, browser.ErrTabNotFound)
}

func TestComplianceEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	env.cooldown.SetLastIntervention(env.clock.Add(-2 * time.Second))

	resp := env.do(t, http.MethodPost, "/v1/agent/compliance", tabEventRequest{TabID: 4})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	stats, err := env.store.StatsFor(context.Background(), model.DayKey(env.clock))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.InterventionsComplied)

	if _, ok := env.cooldown.LastIntervention(); ok {
		t.Fatal("expected cooldown cleared")
	}
}

func TestStatsAndHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	day := model.DayKey(env.clock)

	resp := env.do(t, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeBody[model.Stats](t, resp)
	assert.Zero(t, stats.InterventionsToday)

	resp = env.do(t, http.MethodGet, "/v1/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decodeBody[struct {
		Interventions []model.Intervention `json:"interventions"`
	}](t, resp)
	assert.Empty(t, hist.Interventions)

	require.NoError(t, env.store.RecordIntervened(ctx, day))
	require.NoError(t, env.store.RecordIntervention(ctx, model.Intervention{
		ID: uuid.New(), OccurredAt: env.clock, Domain: "reddit.com", Message: "stop",
	}))

	resp = env.do(t, http.MethodGet, "/v1/stats", nil)
	stats = decodeBody[model.Stats](t, resp)
	assert.Equal(t, 1, stats.InterventionsToday)

	resp = env.do(t, http.MethodGet, "/v1/history?limit=10", nil)
	hist = decodeBody[struct {
		Interventions []model.Intervention `json:"interventions"`
	}](t, resp)
	require.Len(t, hist.Interventions, 1)
	assert.Equal(t, "reddit.com", hist.Interventions[0].Domain)

	resp = env.do(t, http.MethodGet, "/v1/history?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetWipesEverything(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	resp := env.do(t, http.MethodPut, "/v1/settings", validSettings)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, env.store.AddActivity(ctx, model.DayKey(env.clock), "reddit.com", time.Minute))
	env.cooldown.SetLastIntervention(env.clock)

	resp = env.do(t, http.MethodPost, "/v1/reset", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/settings", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ms, err := env.store.ActivityFor(ctx, model.DayKey(env.clock), "reddit.com")
	require.NoError(t, err)
	assert.Zero(t, ms)

	if _, ok := env.cooldown.LastIntervention(); ok {
		t.Fatal("expected cooldown cleared on reset")
	}
}

func TestPairingEnforced(t *testing.T) {
	env := newTestEnv(t, "shared-key")

	// Health stays open.
	resp := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// API routes require the key.
	resp = env.do(t, http.MethodGet, "/v1/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/v1/stats", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer shared-key")
	authed, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)

	// The SSE stream may pass the key as a query parameter.
	resp = env.do(t, http.MethodGet, "/v1/agent/stream?tab_id=0&pairing_key=shared-key", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "authenticated but invalid tab_id")

	resp = env.do(t, http.MethodGet, "/v1/agent/stream?tab_id=1&pairing_key=nope", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAgentStreamDeliversCommands(t *testing.T) {
	env := newTestEnv(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/v1/agent/stream?tab_id=9", nil)
	require.NoError(t, err)
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait for the subscription to land before publishing.
	require.Eventually(t, func() bool {
		return env.broker.ShowIntervention(context.Background(), 9, browser.Notice{
			PersonaName: "Coach Cheer", Message: "Eyes on the prize!", Tone: "rewards",
		}) == nil
	}, 2*time.Second, 10*time.Millisecond)

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
		if event != "" && data != "" {
			break
		}
	}

	assert.Equal(t, "show_intervention", event)
	var notice browser.Notice
	require.NoError(t, json.Unmarshal([]byte(data), &notice))
	assert.Equal(t, "Coach Cheer", notice.PersonaName)
	assert.Equal(t, "Eyes on the prize!", notice.Message)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/thehen/warden/internal/browser"
)

// Broker is the daemon-side half of the extension link. It keeps the
// registry of known tabs (id and last reported URL) and fans commands out to
// the per-tab SSE streams the extension holds open. It is the production
// implementation of both browser.TabHost and browser.AgentChannel.
type Broker struct {
	logger *slog.Logger

	mu      sync.RWMutex
	tabs    map[int64]string      // tab id -> last reported URL
	streams map[int64]chan []byte // tab id -> SSE command stream
}

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:  logger,
		tabs:    make(map[int64]string),
		streams: make(map[int64]chan []byte),
	}
}

// UpsertTab records or updates a tab's URL in the registry.
func (b *Broker) UpsertTab(id int64, url string) {
	b.mu.Lock()
	b.tabs[id] = url
	b.mu.Unlock()
}

// DropTab forgets a tab and closes its command stream, if any.
func (b *Broker) DropTab(id int64) {
	b.mu.Lock()
	delete(b.tabs, id)
	if ch, ok := b.streams[id]; ok {
		delete(b.streams, id)
		close(ch)
	}
	b.mu.Unlock()
}

// GetTab resolves a tab from the registry.
func (b *Broker) GetTab(_ context.Context, id int64) (browser.Tab, error) {
	b.mu.RLock()
	url, ok := b.tabs[id]
	b.mu.RUnlock()
	if !ok {
		return browser.Tab{}, browser.ErrTabNotFound
	}
	return browser.Tab{ID: id, URL: url}, nil
}

// RemoveTab asks the extension to close a tab by sending close_tab on its
// command stream. The registry entry stays until the extension reports the
// removal back.
func (b *Broker) RemoveTab(_ context.Context, id int64) error {
	return b.publish(id, "close_tab", map[string]any{"tab_id": id})
}

// ShowIntervention sends the intervention payload to the page agent in the
// given tab.
func (b *Broker) ShowIntervention(_ context.Context, tabID int64, n browser.Notice) error {
	return b.publish(tabID, "show_intervention", n)
}

// Subscribe opens the command stream for a tab. A tab has at most one
// stream: a new subscription replaces (and closes) the previous one, which
// lets the extension reconnect after a dropped connection without leaking
// the old channel.
func (b *Broker) Subscribe(tabID int64) chan []byte {
	ch := make(chan []byte, 16) // Buffer so publishers never block on a slow reader.
	b.mu.Lock()
	if prev, ok := b.streams[tabID]; ok {
		close(prev)
	}
	b.streams[tabID] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe closes a tab's command stream if ch is still the active one.
// A reconnect may have already replaced it; then ch is closed and gone.
func (b *Broker) Unsubscribe(tabID int64, ch chan []byte) {
	b.mu.Lock()
	if cur, ok := b.streams[tabID]; ok && cur == ch {
		delete(b.streams, tabID)
		close(ch)
	}
	b.mu.Unlock()
}

// publish formats an SSE event and queues it on the tab's stream. An error
// means the command could not even be queued: no stream, or the stream's
// buffer is full.
func (b *Broker) publish(tabID int64, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("server: encode %s: %w", event, err)
	}

	b.mu.RLock()
	ch, ok := b.streams[tabID]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("server: no agent stream for tab %d", tabID)
	}

	select {
	case ch <- formatSSE(event, string(data)):
		return nil
	default:
		return fmt.Errorf("server: agent stream for tab %d is full", tabID)
	}
}

// formatSSE formats a command as a Server-Sent Events message.
func formatSSE(eventType, data string) []byte {
	// SSE format: "event: <type>\ndata: <payload>\n\n"
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}

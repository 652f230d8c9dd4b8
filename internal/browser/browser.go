// Package browser defines the ports to the host browser environment.
//
// The daemon never talks to the browser directly; the extension reports tab
// events over HTTP and holds an SSE command stream open per tab. The
// production implementations of these interfaces live in internal/server;
// tests substitute fakes.
package browser

import (
	"context"
	"errors"
)

// ErrTabNotFound is returned by GetTab when the tab is unknown or gone.
var ErrTabNotFound = errors.New("browser: tab not found")

// Tab is the daemon's view of a browser tab.
type Tab struct {
	ID  int64
	URL string
}

// TabHost exposes the browser's tab surface: resolving a tab's current URL
// and asking the browser to close a tab.
type TabHost interface {
	GetTab(ctx context.Context, id int64) (Tab, error)
	RemoveTab(ctx context.Context, id int64) error
}

// Notice is the intervention payload rendered by the page-embedded agent.
type Notice struct {
	PersonaName string `json:"persona_name"`
	Message     string `json:"message"`
	Tone        string `json:"tone"`
}

// AgentChannel delivers interventions to the page-embedded agent in a
// specific tab. Delivery is fire-and-forget: an error means the send could
// not even be attempted (tab gone, no stream), never a delivery receipt.
type AgentChannel interface {
	ShowIntervention(ctx context.Context, tabID int64, n Notice) error
}

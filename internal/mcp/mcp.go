// Package mcp implements the Model Context Protocol server for warden.
//
// The MCP server exposes read-only views of the activity log, intervention
// stats, and history, so MCP-compatible AI agents (a coding assistant, a
// journaling agent) can reason about the user's focus without touching the
// extension-facing HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/thehen/warden/internal/model"
	"github.com/thehen/warden/internal/storage"
	"github.com/thehen/warden/internal/tracker"
)

// Server wraps the MCP server with warden's storage and tracker.
type Server struct {
	mcpServer *mcpserver.MCPServer
	store     *storage.Store
	tracker   *tracker.Tracker
	logger    *slog.Logger
	now       func() time.Time
}

// New creates and configures a new MCP server with all tools registered.
func New(store *storage.Store, trk *tracker.Tracker, logger *slog.Logger, version string) *Server {
	s := &Server{
		store:   store,
		tracker: trk,
		logger:  logger,
		now:     time.Now,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"warden",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	// warden_focus — the live session right now.
	s.mcpServer.AddTool(
		mcplib.NewTool("warden_focus",
			mcplib.WithDescription(`Get the user's current browser focus: the active domain and how long the current session has run.

WHEN TO USE: to know what the user is looking at right now. Returns idle=true when no web page is focused.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleFocus,
	)

	// warden_activity — today's per-domain totals.
	s.mcpServer.AddTool(
		mcplib.NewTool("warden_activity",
			mcplib.WithDescription(`Get today's committed time-on-domain totals in milliseconds.

WHEN TO USE: to summarize where the user's day went, or to judge whether a domain is close to its threshold. The in-progress session is not included; call warden_focus for that.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleActivity,
	)

	// warden_stats — today's intervention counters.
	s.mcpServer.AddTool(
		mcplib.NewTool("warden_stats",
			mcplib.WithDescription(`Get today's intervention counters: how many interventions were dispatched and how many the user complied with.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleStats,
	)

	// warden_history — recent interventions.
	s.mcpServer.AddTool(
		mcplib.NewTool("warden_history",
			mcplib.WithDescription(`List recent interventions, most recent first: when, which domain, and the message that was shown.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum records to return"),
				mcplib.Min(1),
				mcplib.Max(float64(model.HistoryCap)),
				mcplib.DefaultNumber(10),
			),
		),
		s.handleHistory,
	)
}

func (s *Server) handleFocus(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	snap := s.tracker.Snapshot()
	out := map[string]any{"idle": snap.Idle()}
	if !snap.Idle() {
		out["domain"] = snap.Domain
		out["session_ms"] = snap.Elapsed(s.now()).Milliseconds()
	}
	return jsonResult(out)
}

func (s *Server) handleActivity(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	day := model.DayKey(s.now())
	activity, err := s.store.DayActivity(ctx, day)
	if err != nil {
		return errorResult(fmt.Sprintf("activity lookup failed: %v", err)), nil
	}

	domains := make(map[string]int64, len(activity))
	for domain, d := range activity {
		domains[domain] = d.Milliseconds()
	}
	return jsonResult(map[string]any{"day": day, "domains_ms": domains})
}

func (s *Server) handleStats(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	stats, err := s.store.StatsFor(ctx, model.DayKey(s.now()))
	if err != nil {
		return errorResult(fmt.Sprintf("stats lookup failed: %v", err)), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleHistory(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	limit := request.GetInt("limit", 10)

	records, err := s.store.History(ctx, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("history lookup failed: %v", err)), nil
	}
	if records == nil {
		records = []model.Intervention{}
	}
	return jsonResult(map[string]any{"interventions": records})
}

func jsonResult(data any) (*mcplib.CallToolResult, error) {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(body)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/thehen/warden/internal/auth"
	"github.com/thehen/warden/internal/feedback"
	"github.com/thehen/warden/internal/session"
	"github.com/thehen/warden/internal/storage"
	"github.com/thehen/warden/internal/tracker"
)

// Server is the warden HTTP server. It binds to localhost only: the
// extension is the single intended client.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds all dependencies and settings for creating a Server.
type Config struct {
	Store    *storage.Store
	Tracker  *tracker.Tracker
	Feedback *feedback.Handler
	Broker   *Broker
	Cooldown *session.Store
	Pairing  *auth.Pairing        // nil disables pairing checks.
	MCP      *mcpserver.MCPServer // nil disables the MCP transport.
	Logger   *slog.Logger

	// Optional embedded assets.
	OpenAPISpec []byte

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
	Now          func() time.Time // Defaults to time.Now.
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := NewHandlers(HandlersDeps{
		Store:    cfg.Store,
		Tracker:  cfg.Tracker,
		Feedback: cfg.Feedback,
		Broker:   cfg.Broker,
		Cooldown: cfg.Cooldown,
		Logger:   cfg.Logger,
		Version:  cfg.Version,
		Now:      cfg.Now,
	})

	mux := http.NewServeMux()

	// Extension event reports.
	mux.HandleFunc("POST /v1/events/tab", h.HandleTabEvent)
	mux.HandleFunc("POST /v1/events/tab/removed", h.HandleTabRemoved)

	// Page agent link.
	mux.HandleFunc("GET /v1/agent/stream", h.HandleAgentStream)
	mux.HandleFunc("POST /v1/agent/compliance", h.HandleCompliance)

	// Onboarding and inspection.
	mux.HandleFunc("PUT /v1/settings", h.HandlePutSettings)
	mux.HandleFunc("GET /v1/settings", h.HandleGetSettings)
	mux.HandleFunc("GET /v1/stats", h.HandleStats)
	mux.HandleFunc("GET /v1/history", h.HandleHistory)
	mux.HandleFunc("GET /v1/activity/today", h.HandleActivityToday)
	mux.HandleFunc("POST /v1/reset", h.HandleReset)

	// MCP StreamableHTTP transport.
	if cfg.MCP != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCP))
		cfg.Logger.Info("mcp: enabled at /mcp")
	}

	// OpenAPI spec (no auth).
	if len(cfg.OpenAPISpec) > 0 {
		mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(cfg.OpenAPISpec)
		})
	}

	// Health (no auth).
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → logging → pairing → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = pairingMiddleware(cfg.Pairing, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

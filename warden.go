// Package warden is the public API for embedding the warden daemon.
//
// Warden watches the user's browser activity (reported by a companion
// extension over localhost HTTP), accrues time-on-domain per calendar day,
// and intervenes with persona-voiced messages when a restricted domain
// exceeds its daily threshold:
//
//	app, err := warden.New(
//	    warden.WithVersion(version),
//	    warden.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: warden (root) imports
// internal/*, but internal/* never imports warden (root). Public types
// (Persona, Profile) are standalone structs with no internal imports; the
// conversion helpers live here because this is the only file that sees both
// sides of the boundary.
package warden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/thehen/warden/api"
	"github.com/thehen/warden/internal/auth"
	"github.com/thehen/warden/internal/config"
	"github.com/thehen/warden/internal/feedback"
	"github.com/thehen/warden/internal/intervene"
	"github.com/thehen/warden/internal/mcp"
	"github.com/thehen/warden/internal/model"
	"github.com/thehen/warden/internal/rules"
	"github.com/thehen/warden/internal/server"
	"github.com/thehen/warden/internal/session"
	"github.com/thehen/warden/internal/storage"
	"github.com/thehen/warden/internal/telemetry"
	"github.com/thehen/warden/internal/tracker"
	"github.com/thehen/warden/migrations"
)

// Generator produces an intervention message. When provided via
// WithGenerator, it replaces the built-in remote completion provider; the
// deterministic template still serves as the fallback on error.
type Generator interface {
	Generate(ctx context.Context, persona Persona, domain string, minutes int, profile Profile) (string, error)
}

// App is the warden daemon lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	store        *storage.Store
	srv          *server.Server
	engine       *rules.Engine
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the daemon. It opens the database, runs migrations, and
// wires all subsystems. It does NOT start any goroutines or accept HTTP
// connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("warden starting", "version", version, "port", cfg.Port, "db", cfg.DBPath)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Open the database and run migrations.
	store, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := store.Migrate(context.Background(), migrations.FS); err != nil {
		_ = store.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// Extension link: tab registry plus per-tab SSE command streams.
	broker := server.NewBroker(logger)

	// Activity tracking.
	trk := tracker.New(store, broker, logger)

	// Cooldown state (volatile; a restart forgets the last intervention).
	cooldown := session.New()

	// Message generation: remote completion provider with template fallback.
	var remote intervene.Generator
	if o.generator != nil {
		remote = &generatorAdapter{g: o.generator}
	} else {
		remote = intervene.NewRemoteGenerator(cfg.CompletionsURL, cfg.CompletionsModel, cfg.CompletionsTimeout)
	}

	dispatcher := intervene.New(store, cooldown, broker, remote, logger)

	engine := rules.New(trk, store, cooldown, dispatcher, rules.Config{
		RestrictedDomains: cfg.RestrictedDomains,
		Threshold:         cfg.Threshold,
		CooldownWindow:    cfg.CooldownWindow,
		EvaluateInterval:  cfg.EvaluateInterval,
	}, logger)

	fb := feedback.New(store, cooldown, broker, logger)

	// MCP server for read-only agent access.
	mcpSrv := mcp.New(store, trk, logger, version)

	pairing, err := auth.NewPairing(cfg.PairingKey)
	if err != nil {
		_ = store.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("pairing: %w", err)
	}
	if pairing == nil {
		logger.Info("extension pairing: disabled (no WARDEN_PAIRING_KEY)")
	}

	srv := server.New(server.Config{
		Store:        store,
		Tracker:      trk,
		Feedback:     fb,
		Broker:       broker,
		Cooldown:     cooldown,
		Pairing:      pairing,
		MCP:          mcpSrv.MCPServer(),
		Logger:       logger,
		OpenAPISpec:  api.OpenAPISpec,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
	})

	return &App{
		cfg:          cfg,
		store:        store,
		srv:          srv,
		engine:       engine,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the rule engine and the HTTP server, then blocks until ctx is
// cancelled or a fatal server error occurs. On return, Shutdown has been
// performed — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.engine.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.shutdown()
	return err
}

// shutdown closes the database and the OTEL provider after the HTTP server
// and rule engine have stopped.
func (a *App) shutdown() {
	a.logger.Info("warden shutting down")
	if err := a.store.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}
	_ = a.otelShutdown(context.Background())
	a.logger.Info("warden stopped")
}

// generatorAdapter wraps a public warden.Generator to satisfy
// intervene.Generator. It converts internal model types to public warden
// types at the boundary.
type generatorAdapter struct {
	g Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, p model.Persona, domain string, minutes int, s model.UserSettings) (string, error) {
	return a.g.Generate(ctx, toPublicPersona(p), domain, minutes, toPublicProfile(s))
}

// toPublicPersona converts an internal model.Persona to the public
// warden.Persona. Lives here because this is the only file that imports
// both sides of the boundary.
func toPublicPersona(p model.Persona) Persona {
	return Persona{
		Name:         p.Name,
		Tone:         p.Tone,
		Catchphrases: p.Catchphrases,
	}
}

// toPublicProfile converts internal model.UserSettings to the public
// warden.Profile. The completion-API key never crosses this boundary.
func toPublicProfile(s model.UserSettings) Profile {
	return Profile{
		Identity:        s.Identity,
		Goal:            s.Goal,
		Weakness:        s.Weakness,
		MotivationStyle: s.MotivationStyle,
		Intensity:       s.Intensity,
	}
}

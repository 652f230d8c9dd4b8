package warden

import (
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port      int
	dbPath    string
	logger    *slog.Logger
	version   string
	generator Generator
}

// WithPort overrides the TCP port from config (WARDEN_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDBPath overrides the SQLite database path from config (WARDEN_DB_PATH env var).
func WithDBPath(path string) Option {
	return func(o *resolvedOptions) { o.dbPath = path }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithGenerator replaces the built-in remote completion provider for
// intervention messages. Only the last call wins. The deterministic
// template remains the fallback when the generator returns an error.
func WithGenerator(g Generator) Option {
	return func(o *resolvedOptions) { o.generator = g }
}

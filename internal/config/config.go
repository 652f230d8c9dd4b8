// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultRestrictedDomains is the static restricted-domain set. A domain is
// restricted when it contains any of these entries, so subdomains like
// old.reddit.com match.
var defaultRestrictedDomains = []string{
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"youtube.com",
	"reddit.com",
	"tiktok.com",
}

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Durable store settings.
	DBPath string // SQLite database file path.

	// Rule engine settings.
	RestrictedDomains []string
	Threshold         time.Duration // Daily time-on-domain before interventions start.
	CooldownWindow    time.Duration // Minimum gap between two dispatches.
	EvaluateInterval  time.Duration // Rule engine tick period.

	// Completion provider settings (remote intervention messages).
	CompletionsURL     string
	CompletionsModel   string
	CompletionsTimeout time.Duration

	// Extension pairing.
	PairingKey string // Shared key presented by the browser extension; empty disables auth.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:               envInt("WARDEN_PORT", 7399),
		ReadTimeout:        envDuration("WARDEN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       envDuration("WARDEN_WRITE_TIMEOUT", 15*time.Second),
		DBPath:             envStr("WARDEN_DB_PATH", "warden.db"),
		RestrictedDomains:  envStrSlice("WARDEN_RESTRICTED_DOMAINS", defaultRestrictedDomains),
		Threshold:          envDuration("WARDEN_THRESHOLD", 15*time.Minute),
		CooldownWindow:     envDuration("WARDEN_COOLDOWN", time.Minute),
		EvaluateInterval:   envDuration("WARDEN_EVALUATE_INTERVAL", 30*time.Second),
		CompletionsURL:     envStr("WARDEN_COMPLETIONS_URL", "https://openrouter.ai/api/v1/chat/completions"),
		CompletionsModel:   envStr("WARDEN_COMPLETIONS_MODEL", "openai/gpt-3.5-turbo"),
		CompletionsTimeout: envDuration("WARDEN_COMPLETIONS_TIMEOUT", 15*time.Second),
		PairingKey:         envStr("WARDEN_PAIRING_KEY", ""),
		OTELEndpoint:       envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:        envStr("OTEL_SERVICE_NAME", "warden"),
		LogLevel:           envStr("WARDEN_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: WARDEN_DB_PATH is required")
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("config: WARDEN_THRESHOLD must be positive")
	}
	if c.CooldownWindow <= 0 {
		return fmt.Errorf("config: WARDEN_COOLDOWN must be positive")
	}
	if c.EvaluateInterval <= 0 {
		return fmt.Errorf("config: WARDEN_EVALUATE_INTERVAL must be positive")
	}
	if len(c.RestrictedDomains) == 0 {
		return fmt.Errorf("config: WARDEN_RESTRICTED_DOMAINS must not be empty")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envStrSlice(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

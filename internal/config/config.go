// Package config loads ledgerflow settings from a YAML or JSON file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ledgerflow/internal/intent"
	"ledgerflow/internal/llm"
	"ledgerflow/internal/logging"
	"ledgerflow/internal/match"
	"ledgerflow/internal/reconcile"
	"ledgerflow/internal/store"
)

// Config is the complete runtime configuration.
type Config struct {
	Log      Log          `yaml:"log"`
	Match    match.Config `yaml:"match"`
	Routing  Routing      `yaml:"routing"`
	Timeouts Timeouts     `yaml:"timeouts"`
	Retries  Retries      `yaml:"retries"`
	Store    Store        `yaml:"store"`
	LLM      LLM          `yaml:"llm"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Routing struct {
	ClarifyBelow float64 `yaml:"clarify_below"`
}

type Timeouts struct {
	Call time.Duration `yaml:"call"`
}

type Retries struct {
	PrimaryFetch int           `yaml:"primary_fetch"`
	Backoff      time.Duration `yaml:"backoff"`
}

type Store struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LLM configures the optional chat-completions endpoint. An empty BaseURL
// disables it and the keyword fallback classifies every message.
type LLM struct {
	BaseURL   string              `yaml:"base_url"`
	Model     string              `yaml:"model"`
	APIKeyEnv string              `yaml:"api_key_env"`
	Breaker   llm.BreakerSettings `yaml:"breaker"`
}

// Enabled reports whether an endpoint is configured.
func (l LLM) Enabled() bool { return l.BaseURL != "" }

// APIKey reads the key from the configured environment variable.
func (l LLM) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// Default returns the built-in configuration.
func Default() Config {
	rs := reconcile.DefaultSettings()
	return Config{
		Log:      Log{Level: "info", Format: "text"},
		Match:    match.DefaultConfig(),
		Routing:  Routing{ClarifyBelow: intent.DefaultClarifyBelow},
		Timeouts: Timeouts{Call: rs.CallTimeout},
		Retries:  Retries{PrimaryFetch: rs.PrimaryRetries, Backoff: rs.PrimaryBackoff},
		Store:    Store{Driver: store.DriverSQLite, DSN: store.DefaultDBPath},
		LLM: LLM{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "LEDGERFLOW_LLM_API_KEY",
			Breaker:   llm.DefaultBreakerSettings(),
		},
	}
}

// LoadFromPath reads path over the defaults. A missing path returns the
// defaults unchanged.
func LoadFromPath(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Load(data)
}

// Load parses YAML (or JSON, which YAML accepts) over the defaults and
// validates the result.
func Load(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the workflows would refuse at construction.
func (c Config) Validate() error {
	if err := c.Match.Validate(); err != nil {
		return fmt.Errorf("config: match: %w", err)
	}
	if c.Routing.ClarifyBelow < 0 || c.Routing.ClarifyBelow > 1 {
		return fmt.Errorf("config: routing.clarify_below %v outside [0,1]", c.Routing.ClarifyBelow)
	}
	if c.Retries.PrimaryFetch < 0 {
		return fmt.Errorf("config: retries.primary_fetch must not be negative")
	}
	if c.Timeouts.Call < 0 {
		return fmt.Errorf("config: timeouts.call must not be negative")
	}
	switch c.Store.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("config: unsupported store.driver %q", c.Store.Driver)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ReconcileSettings derives the reconciliation workflow settings.
func (c Config) ReconcileSettings() reconcile.Settings {
	return reconcile.Settings{
		Match:          c.Match,
		CallTimeout:    c.Timeouts.Call,
		PrimaryRetries: c.Retries.PrimaryFetch,
		PrimaryBackoff: c.Retries.Backoff,
	}
}

// IntentSettings derives the intent router settings.
func (c Config) IntentSettings() intent.Settings {
	return intent.Settings{ClarifyBelow: c.Routing.ClarifyBelow, CallTimeout: c.Timeouts.Call}
}

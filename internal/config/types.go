// Package config provides configuration loading for draftd.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// Config is the root configuration, constructed once at startup and passed
// by reference into the orchestrator and provider constructors.
type Config struct {
	// Workspace is the directory holding per-project state and artifacts.
	Workspace string `koanf:"workspace"`

	// DryRun disables all network calls; providers return simulated output.
	DryRun bool `koanf:"dry_run"`

	// MaxQALoops bounds how many failed QA verdicts send the pipeline back
	// to dev before it finishes with a failing quality record.
	MaxQALoops int `koanf:"max_qa_loops"`

	Retry      RetryConfig      `koanf:"retry"`
	Providers  ProvidersConfig  `koanf:"providers"`
	Logging    LoggingConfig    `koanf:"logging"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
}

// RetryConfig holds retry/backoff policy parameters shared by all providers.
type RetryConfig struct {
	MaxRetries            int     `koanf:"max_retries"`
	MaxWaitSeconds        float64 `koanf:"max_wait_seconds"`
	InitialBackoffSeconds float64 `koanf:"initial_backoff_seconds"`
	BackoffMultiplier     float64 `koanf:"backoff_multiplier"`
}

// ProvidersConfig selects and configures the completion backends.
type ProvidersConfig struct {
	// Order is the preference order for picking the active provider.
	Order []string `koanf:"order"`

	OpenAI    ProviderConfig `koanf:"openai"`
	Anthropic ProviderConfig `koanf:"anthropic"`
	Google    ProviderConfig `koanf:"google"`
}

// ProviderConfig configures one backend: credentials and its model
// escalation chain, primary first.
type ProviderConfig struct {
	APIKey Secret `koanf:"api_key"`

	// Model is the primary model. Empty uses the provider default.
	Model string `koanf:"model"`

	// FallbackModels are tried in order when the primary keeps failing.
	FallbackModels []string `koanf:"fallback_models"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CheckpointConfig controls git checkpointing of stage output.
type CheckpointConfig struct {
	Enabled bool `koanf:"enabled"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Workspace:  ".draftd",
		DryRun:     false,
		MaxQALoops: 3,
		Retry: RetryConfig{
			MaxRetries:            5,
			MaxWaitSeconds:        3600,
			InitialBackoffSeconds: 10.0,
			BackoffMultiplier:     2.0,
		},
		Providers: ProvidersConfig{
			Order: []string{"anthropic", "openai", "google"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace cannot be empty")
	}
	if c.MaxQALoops < 1 {
		return fmt.Errorf("max_qa_loops must be at least 1, got %d", c.MaxQALoops)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.MaxWaitSeconds <= 0 {
		return fmt.Errorf("retry.max_wait_seconds must be positive, got %v", c.Retry.MaxWaitSeconds)
	}
	if c.Retry.InitialBackoffSeconds <= 0 {
		return fmt.Errorf("retry.initial_backoff_seconds must be positive, got %v", c.Retry.InitialBackoffSeconds)
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1, got %v", c.Retry.BackoffMultiplier)
	}
	for _, name := range c.Providers.Order {
		switch name {
		case "openai", "anthropic", "google":
		default:
			return fmt.Errorf("unknown provider %q in providers.order", name)
		}
	}
	return nil
}

// ParseBool parses environment-style boolean tokens.
// Truthy: true, 1, yes, on. Falsy: false, 0, no, off. Case-insensitive.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}

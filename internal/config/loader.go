package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces all draftd environment overrides.
	envPrefix = "DRAFTD_"
)

// envSections are top-level config sections; an environment variable whose
// first token names one of these maps to a nested key.
var envSections = map[string]bool{
	"retry":      true,
	"providers":  true,
	"logging":    true,
	"checkpoint": true,
}

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DRAFTD_DRY_RUN, DRAFTD_RETRY_MAX_RETRIES, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Provider API keys additionally fall back to the conventional vendor
// variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_API_KEY) when not set
// through the draftd config itself.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	// Environment overrides. DRAFTD_RETRY_MAX_RETRIES -> retry.max_retries,
	// DRAFTD_WORKSPACE -> workspace. Booleans are handled separately below
	// so the accepted token set (yes/no/on/off) stays consistent.
	if err := k.Load(env.Provider(envPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyBoolOverride("DRAFTD_DRY_RUN", &cfg.DryRun); err != nil {
		return nil, err
	}
	if err := applyBoolOverride("DRAFTD_CHECKPOINT_ENABLED", &cfg.Checkpoint.Enabled); err != nil {
		return nil, err
	}

	applyCredentialFallbacks(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envTransformer maps DRAFTD_* environment variable names to koanf keys.
func envTransformer(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	// Booleans are applied after unmarshal; keep them out of the koanf tree.
	switch lower {
	case "dry_run", "checkpoint_enabled":
		return ""
	}

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 2 && envSections[parts[0]] {
		return parts[0] + "." + parts[1]
	}
	return lower
}

// applyBoolOverride applies an environment boolean using the draftd token set.
func applyBoolOverride(envVar string, target *bool) error {
	raw, ok := os.LookupEnv(envVar)
	if !ok || raw == "" {
		return nil
	}
	val, err := ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", envVar, err)
	}
	*target = val
	return nil
}

// applyCredentialFallbacks fills provider keys from conventional vendor
// environment variables when the draftd config leaves them empty.
func applyCredentialFallbacks(cfg *Config) {
	if !cfg.Providers.OpenAI.APIKey.IsSet() {
		cfg.Providers.OpenAI.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}
	if !cfg.Providers.Anthropic.APIKey.IsSet() {
		cfg.Providers.Anthropic.APIKey = Secret(os.Getenv("ANTHROPIC_API_KEY"))
	}
	if !cfg.Providers.Google.APIKey.IsSet() {
		cfg.Providers.Google.APIKey = Secret(os.Getenv("GOOGLE_API_KEY"))
	}
}

// readConfigFile reads the config file, tolerating absence.
// Returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds size limit (%d bytes)", path, maxConfigFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

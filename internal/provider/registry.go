package provider

import (
	"errors"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
)

// ErrNoProviderAvailable indicates that no configured provider has
// credentials (and dry-run is off).
var ErrNoProviderAvailable = errors.New("no provider available: configure an API key or enable dry-run")

// FromConfig builds every known client from configuration.
func FromConfig(cfg *config.Config, log *logging.Logger) map[string]Client {
	return map[string]Client{
		openAIName:    NewOpenAIClient(cfg.Providers.OpenAI, cfg.DryRun, log),
		anthropicName: NewAnthropicClient(cfg.Providers.Anthropic, cfg.DryRun, log),
		googleName:    NewGoogleClient(cfg.Providers.Google, cfg.DryRun, log),
	}
}

// Select returns the first available client in the configured preference
// order. In dry-run mode every client is available, so the first entry wins.
func Select(cfg *config.Config, clients map[string]Client) (Client, error) {
	for _, name := range cfg.Providers.Order {
		client, ok := clients[name]
		if !ok {
			continue
		}
		if client.IsAvailable() {
			return client, nil
		}
	}
	return nil, ErrNoProviderAvailable
}

package provider

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

func TestDryRun_NoNetworkDeterministic(t *testing.T) {
	clients := []Client{
		NewOpenAIClient(config.ProviderConfig{}, true, nil),
		NewAnthropicClient(config.ProviderConfig{}, true, nil),
		NewGoogleClient(config.ProviderConfig{}, true, nil),
	}

	messages := []Message{
		{Role: RoleSystem, Content: "you are a writer"},
		{Role: RoleUser, Content: "draft something"},
	}

	for _, client := range clients {
		t.Run(client.Name(), func(t *testing.T) {
			// No API key configured: a real call would fail immediately,
			// so a response proves no network path was taken.
			first, err := client.Complete(context.Background(), messages, Options{})
			require.NoError(t, err)
			second, err := client.Complete(context.Background(), messages, Options{})
			require.NoError(t, err)

			assert.Equal(t, first, second, "dry-run output must be deterministic")
			assert.Equal(t, DryRunFinishReason, first.FinishReason)
			assert.True(t, IsSimulated(first))
			assert.Contains(t, first.Content, client.Name())
			assert.Equal(t, client.Models()[0], first.Model)
		})
	}
}

func TestIsSimulated(t *testing.T) {
	assert.False(t, IsSimulated(nil))
	assert.False(t, IsSimulated(&CompletionResponse{Content: "real text", FinishReason: "stop"}))
	assert.True(t, IsSimulated(&CompletionResponse{Content: "x", FinishReason: DryRunFinishReason}))
	assert.True(t, IsSimulated(newDryRunResponse("openai", "gpt-4o", nil)))
}

func TestIsAvailable(t *testing.T) {
	withKey := config.ProviderConfig{APIKey: config.Secret("sk-test")}
	noKey := config.ProviderConfig{}

	assert.True(t, NewOpenAIClient(withKey, false, nil).IsAvailable())
	assert.False(t, NewOpenAIClient(noKey, false, nil).IsAvailable())
	assert.True(t, NewOpenAIClient(noKey, true, nil).IsAvailable(), "dry-run is always available")

	assert.False(t, NewAnthropicClient(noKey, false, nil).IsAvailable())
	assert.False(t, NewGoogleClient(noKey, false, nil).IsAvailable())
}

func TestComplete_NoKeyFailsClassified(t *testing.T) {
	client := NewAnthropicClient(config.ProviderConfig{}, false, nil)

	_, err := client.Complete(context.Background(), nil, Options{})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "anthropic", provErr.Provider)
	assert.Contains(t, provErr.Message, "api key")
}

func TestDefaultChains(t *testing.T) {
	openAI := NewOpenAIClient(config.ProviderConfig{}, true, nil)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"}, openAI.Models(),
		"openai carries a secondary fallback")

	anthropicClient := NewAnthropicClient(config.ProviderConfig{}, true, nil)
	assert.Equal(t, []string{"claude-3-5-sonnet-latest", "claude-3-5-haiku-latest"}, anthropicClient.Models())

	google := NewGoogleClient(config.ProviderConfig{}, true, nil)
	assert.Equal(t, []string{"gemini-1.5-pro", "gemini-1.5-flash"}, google.Models())
}

func TestConfiguredChainOverridesDefaults(t *testing.T) {
	client := NewOpenAIClient(config.ProviderConfig{
		Model:          "gpt-4.1",
		FallbackModels: []string{"gpt-4.1-mini"},
	}, true, nil)
	assert.Equal(t, []string{"gpt-4.1", "gpt-4.1-mini"}, client.Models())
}

func TestSelect_PrefersConfiguredOrder(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Providers.Order = []string{"google", "openai"}
	cfg.Providers.Google.APIKey = config.Secret("g-key")
	cfg.Providers.OpenAI.APIKey = config.Secret("sk-key")

	clients := FromConfig(cfg, nil)
	client, err := Select(cfg, clients)
	require.NoError(t, err)
	assert.Equal(t, "google", client.Name())
}

func TestSelect_SkipsUnavailable(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Providers.Order = []string{"anthropic", "openai"}
	cfg.Providers.OpenAI.APIKey = config.Secret("sk-key")

	client, err := Select(cfg, FromConfig(cfg, nil))
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
}

func TestSelect_NoneAvailable(t *testing.T) {
	cfg := config.NewDefaultConfig()

	_, err := Select(cfg, FromConfig(cfg, nil))
	require.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestSelect_DryRunAlwaysSelects(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.DryRun = true

	client, err := Select(cfg, FromConfig(cfg, nil))
	require.NoError(t, err)
	assert.Equal(t, cfg.Providers.Order[0], client.Name())
}

func TestParseResponse(t *testing.T) {
	t.Run("empty response", func(t *testing.T) {
		_, err := parseResponse("openai", "gpt-4o", &llms.ContentResponse{})
		require.Error(t, err)

		var provErr *ProviderError
		require.ErrorAs(t, err, &provErr)
	})

	t.Run("first choice with usage", func(t *testing.T) {
		resp, err := parseResponse("openai", "gpt-4o", &llms.ContentResponse{
			Choices: []*llms.ContentChoice{{
				Content:    "drafted text",
				StopReason: "stop",
				GenerationInfo: map[string]any{
					"CompletionTokens": 120,
					"PromptTokens":     45,
					"TotalTokens":      165,
				},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, "drafted text", resp.Content)
		assert.Equal(t, "stop", resp.FinishReason)
		assert.Equal(t, "openai", resp.Provider)
		assert.Equal(t, map[string]int{
			"completion_tokens": 120,
			"prompt_tokens":     45,
			"total_tokens":      165,
		}, resp.Usage)
	})

	t.Run("no usage info", func(t *testing.T) {
		resp, err := parseResponse("anthropic", "claude-3-5-sonnet-latest", &llms.ContentResponse{
			Choices: []*llms.ContentChoice{{Content: "text", StopReason: "end_turn"}},
		})
		require.NoError(t, err)
		assert.Nil(t, resp.Usage)
	})
}

func TestToMessageContent(t *testing.T) {
	out := toMessageContent([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "usr"},
		{Role: RoleAssistant, Content: "ast"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, schema.ChatMessageTypeSystem, out[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, out[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, out[2].Role)
}

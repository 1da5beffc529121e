package provider

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

const (
	anthropicName         = "anthropic"
	defaultAnthropicModel = "claude-3-5-sonnet-latest"
)

var defaultAnthropicFallbacks = []string{"claude-3-5-haiku-latest"}

// AnthropicClient adapts the Anthropic messages API.
type AnthropicClient struct {
	apiKey string
	models []string
	dryRun bool
	log    *logging.Logger
	llm    llms.Model
}

// NewAnthropicClient creates an Anthropic adapter from configuration.
func NewAnthropicClient(cfg config.ProviderConfig, dryRun bool, log *logging.Logger) *AnthropicClient {
	if log == nil {
		log = logging.Nop()
	}
	return &AnthropicClient{
		apiKey: cfg.APIKey.Value(),
		models: chain(cfg.Model, defaultAnthropicModel, cfg.FallbackModels, defaultAnthropicFallbacks),
		dryRun: dryRun,
		log:    log,
	}
}

func (c *AnthropicClient) Name() string { return anthropicName }

func (c *AnthropicClient) Models() []string { return c.models }

func (c *AnthropicClient) IsAvailable() bool { return c.dryRun || c.apiKey != "" }

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message, opts Options) (*CompletionResponse, error) {
	model := opts.Model
	if model == "" {
		model = c.models[0]
	}

	if c.dryRun {
		return newDryRunResponse(anthropicName, model, messages), nil
	}
	if c.apiKey == "" {
		return nil, &ProviderError{Provider: anthropicName, Model: model, Message: "api key not configured"}
	}

	if c.llm == nil {
		llm, err := anthropic.New(anthropic.WithToken(c.apiKey), anthropic.WithModel(model))
		if err != nil {
			return nil, &ProviderError{Provider: anthropicName, Model: model, Message: err.Error(), Err: err}
		}
		c.llm = llm
	}

	resp, err := c.llm.GenerateContent(ctx, toMessageContent(messages), callOptions(model, opts)...)
	if err != nil {
		return nil, c.classify(model, err)
	}
	return parseResponse(anthropicName, model, resp)
}

// classify maps Anthropic failures into the shared taxonomy.
//
// Anthropic reports throttling as rate_limit_error (and overloaded_error
// for transient capacity pressure); a depleted credit balance comes back as
// an invalid_request_error mentioning the balance.
func (c *AnthropicClient) classify(model string, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	base := ProviderError{Provider: anthropicName, Model: model, Message: msg, Err: err}

	switch {
	case strings.Contains(lower, "credit balance"),
		strings.Contains(lower, "billing"):
		return &QuotaExhaustedError{ProviderError: base, QuotaType: QuotaBilling}

	case strings.Contains(lower, "rate_limit_error"),
		strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "overloaded_error"),
		strings.Contains(lower, "429"):
		return &RateLimitError{
			ProviderError: base,
			RetryAfter:    parseRetryAfterHint(msg),
			ResetAt:       parseResetHint(msg),
		}
	}
	return &base
}

var _ Client = (*AnthropicClient)(nil)

package provider

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	openAIName         = "openai"
	defaultOpenAIModel = "gpt-4o"
)

// defaultOpenAIFallbacks is the escalation chain below the primary model,
// most to least capable. OpenAI carries a secondary fallback.
var defaultOpenAIFallbacks = []string{"gpt-4o-mini", "gpt-3.5-turbo"}

// OpenAIClient adapts the OpenAI chat completion API.
type OpenAIClient struct {
	apiKey string
	models []string
	dryRun bool
	log    *logging.Logger
	llm    llms.Model
}

// NewOpenAIClient creates an OpenAI adapter from configuration.
func NewOpenAIClient(cfg config.ProviderConfig, dryRun bool, log *logging.Logger) *OpenAIClient {
	if log == nil {
		log = logging.Nop()
	}
	return &OpenAIClient{
		apiKey: cfg.APIKey.Value(),
		models: chain(cfg.Model, defaultOpenAIModel, cfg.FallbackModels, defaultOpenAIFallbacks),
		dryRun: dryRun,
		log:    log,
	}
}

func (c *OpenAIClient) Name() string { return openAIName }

func (c *OpenAIClient) Models() []string { return c.models }

func (c *OpenAIClient) IsAvailable() bool { return c.dryRun || c.apiKey != "" }

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts Options) (*CompletionResponse, error) {
	model := opts.Model
	if model == "" {
		model = c.models[0]
	}

	if c.dryRun {
		return newDryRunResponse(openAIName, model, messages), nil
	}
	if c.apiKey == "" {
		return nil, &ProviderError{Provider: openAIName, Model: model, Message: "api key not configured"}
	}

	if c.llm == nil {
		llm, err := openai.New(openai.WithToken(c.apiKey), openai.WithModel(model))
		if err != nil {
			return nil, &ProviderError{Provider: openAIName, Model: model, Message: err.Error(), Err: err}
		}
		c.llm = llm
	}

	resp, err := c.llm.GenerateContent(ctx, toMessageContent(messages), callOptions(model, opts)...)
	if err != nil {
		return nil, c.classify(model, err)
	}
	return parseResponse(openAIName, model, resp)
}

// classify maps OpenAI failures into the shared taxonomy.
//
// OpenAI reports billing exhaustion as an "insufficient_quota" 429 and
// transient RPM/TPM throttles as "rate limit reached" 429s that usually
// carry a "try again in Ns" hint.
func (c *OpenAIClient) classify(model string, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	base := ProviderError{Provider: openAIName, Model: model, Message: msg, Err: err}

	switch {
	case strings.Contains(lower, "insufficient_quota"),
		strings.Contains(lower, "exceeded your current quota"),
		strings.Contains(lower, "billing"):
		return &QuotaExhaustedError{ProviderError: base, QuotaType: QuotaBilling}

	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "429"):
		return &RateLimitError{
			ProviderError: base,
			RetryAfter:    parseRetryAfterHint(msg),
			ResetAt:       parseResetHint(msg),
		}
	}
	return &base
}

var _ Client = (*OpenAIClient)(nil)

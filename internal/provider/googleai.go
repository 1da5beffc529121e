package provider

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	googleName         = "google"
	defaultGoogleModel = "gemini-1.5-pro"
)

var defaultGoogleFallbacks = []string{"gemini-1.5-flash"}

// GoogleClient adapts the Google Gemini API.
type GoogleClient struct {
	apiKey string
	models []string
	dryRun bool
	log    *logging.Logger
	llm    llms.Model
}

// NewGoogleClient creates a Google adapter from configuration.
func NewGoogleClient(cfg config.ProviderConfig, dryRun bool, log *logging.Logger) *GoogleClient {
	if log == nil {
		log = logging.Nop()
	}
	return &GoogleClient{
		apiKey: cfg.APIKey.Value(),
		models: chain(cfg.Model, defaultGoogleModel, cfg.FallbackModels, defaultGoogleFallbacks),
		dryRun: dryRun,
		log:    log,
	}
}

func (c *GoogleClient) Name() string { return googleName }

func (c *GoogleClient) Models() []string { return c.models }

func (c *GoogleClient) IsAvailable() bool { return c.dryRun || c.apiKey != "" }

func (c *GoogleClient) Complete(ctx context.Context, messages []Message, opts Options) (*CompletionResponse, error) {
	model := opts.Model
	if model == "" {
		model = c.models[0]
	}

	if c.dryRun {
		return newDryRunResponse(googleName, model, messages), nil
	}
	if c.apiKey == "" {
		return nil, &ProviderError{Provider: googleName, Model: model, Message: "api key not configured"}
	}

	if c.llm == nil {
		llm, err := googleai.New(ctx, googleai.WithAPIKey(c.apiKey), googleai.WithDefaultModel(model))
		if err != nil {
			return nil, &ProviderError{Provider: googleName, Model: model, Message: err.Error(), Err: err}
		}
		c.llm = llm
	}

	resp, err := c.llm.GenerateContent(ctx, toMessageContent(messages), callOptions(model, opts)...)
	if err != nil {
		return nil, c.classify(model, err)
	}
	return parseResponse(googleName, model, resp)
}

// classify maps Google failures into the shared taxonomy.
//
// Gemini reports usage caps as RESOURCE_EXHAUSTED with a quota metric in the
// message; the metric name tells requests-per-minute apart from
// tokens-per-minute. Plain 429s without a quota metric are transient.
func (c *GoogleClient) classify(model string, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	base := ProviderError{Provider: googleName, Model: model, Message: msg, Err: err}

	switch {
	case strings.Contains(lower, "resource_exhausted"),
		strings.Contains(lower, "quota"):
		return &QuotaExhaustedError{ProviderError: base, QuotaType: googleQuotaType(lower)}

	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "429"),
		strings.Contains(lower, "too many requests"):
		return &RateLimitError{
			ProviderError: base,
			RetryAfter:    parseRetryAfterHint(msg),
			ResetAt:       parseResetHint(msg),
		}
	}
	return &base
}

// googleQuotaType discriminates which Gemini quota was exhausted.
func googleQuotaType(lower string) QuotaType {
	switch {
	case strings.Contains(lower, "billing"):
		return QuotaBilling
	case strings.Contains(lower, "request"):
		return QuotaRequests
	case strings.Contains(lower, "token"):
		return QuotaTokens
	}
	return QuotaOther
}

var _ Client = (*GoogleClient)(nil)

package provider

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one element of an ordered conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call.
type Options struct {
	// Model overrides the client's primary model. The retry engine uses
	// this to walk the escalation chain.
	Model string

	// MaxTokens caps the completion length. Zero uses the backend default.
	MaxTokens int

	// Temperature controls sampling. Zero uses the backend default.
	Temperature float64
}

// CompletionResponse is the normalized result of one completion call.
type CompletionResponse struct {
	Content      string         `json:"content"`
	Model        string         `json:"model"`
	Provider     string         `json:"provider"`
	Usage        map[string]int `json:"usage,omitempty"`
	FinishReason string         `json:"finish_reason"`
}

// Client is one completion backend.
type Client interface {
	// Name returns the provider identifier ("openai", "anthropic", "google").
	Name() string

	// Models returns the escalation chain, primary first. The chain always
	// has at least one entry.
	Models() []string

	// IsAvailable reports whether credentials are configured. It never
	// probes the network. Dry-run clients are always available.
	IsAvailable() bool

	// Complete performs one completion request. Failures are always one of
	// the taxonomy errors: *RateLimitError, *QuotaExhaustedError, or
	// *ProviderError.
	Complete(ctx context.Context, messages []Message, opts Options) (*CompletionResponse, error)
}

// chain assembles a model escalation chain from config with defaults.
func chain(primary, defaultPrimary string, fallbacks, defaultFallbacks []string) []string {
	if primary == "" {
		primary = defaultPrimary
	}
	if fallbacks == nil {
		fallbacks = defaultFallbacks
	}
	return append([]string{primary}, fallbacks...)
}

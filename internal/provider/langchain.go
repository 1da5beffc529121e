package provider

import (
	"regexp"
	"strconv"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// toMessageContent shapes draftd messages into langchaingo form.
func toMessageContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := schema.ChatMessageTypeHuman
		switch m.Role {
		case RoleSystem:
			role = schema.ChatMessageTypeSystem
		case RoleAssistant:
			role = schema.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// callOptions builds the per-call options for a backend request.
func callOptions(model string, opts Options) []llms.CallOption {
	callOpts := []llms.CallOption{llms.WithModel(model)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	return callOpts
}

// parseResponse normalizes a langchaingo response.
func parseResponse(providerName, model string, resp *llms.ContentResponse) (*CompletionResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider: providerName,
			Model:    model,
			Message:  "empty completion response",
		}
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Content,
		Model:        model,
		Provider:     providerName,
		Usage:        usageFromGenerationInfo(choice.GenerationInfo),
		FinishReason: choice.StopReason,
	}, nil
}

// generationInfoKeys maps langchaingo generation info keys to the usage
// mapping keys draftd exposes.
var generationInfoKeys = map[string]string{
	"CompletionTokens": "completion_tokens",
	"PromptTokens":     "prompt_tokens",
	"TotalTokens":      "total_tokens",
	"input_tokens":     "prompt_tokens",
	"output_tokens":    "completion_tokens",
}

func usageFromGenerationInfo(info map[string]any) map[string]int {
	if len(info) == 0 {
		return nil
	}
	usage := make(map[string]int)
	for key, target := range generationInfoKeys {
		if v, ok := info[key]; ok {
			if n, ok := toInt(v); ok {
				usage[target] = n
			}
		}
	}
	if len(usage) == 0 {
		return nil
	}
	return usage
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// retryAfterHintRe matches wait hints backends embed in throttle messages,
// e.g. "Please try again in 1.898s" or "retry after 30 seconds".
var retryAfterHintRe = regexp.MustCompile(`(?i)(?:try again|retry) (?:in|after) ([0-9]*\.?[0-9]+)\s*(ms|milliseconds?|s|sec|seconds?|m|min|minutes?)?`)

// parseRetryAfterHint extracts a wait duration from an error message.
// Returns zero when no hint is present.
func parseRetryAfterHint(msg string) time.Duration {
	match := retryAfterHintRe.FindStringSubmatch(msg)
	if match == nil {
		return 0
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}

	unit := time.Second
	switch match[2] {
	case "ms", "millisecond", "milliseconds":
		unit = time.Millisecond
	case "m", "min", "minute", "minutes":
		unit = time.Minute
	}
	return time.Duration(value * float64(unit))
}

// resetHintRe matches reset timestamps like "resets at 2026-01-02T15:04:05Z".
var resetHintRe = regexp.MustCompile(`(?i)resets? at ([0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9:.]+(?:Z|[+-][0-9]{2}:[0-9]{2}))`)

// parseResetHint extracts a rate-limit reset time from an error message.
// Returns the zero time when no hint is present.
func parseResetHint(msg string) time.Time {
	match := resetHintRe.FindStringSubmatch(msg)
	if match == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, match[1])
	if err != nil {
		return time.Time{}
	}
	return t
}

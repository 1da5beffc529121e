package provider

import (
	"fmt"
	"strings"
)

// DryRunFinishReason is the finish reason of every simulated completion.
// It is distinct from any real backend's finish reason so callers can always
// tell simulated output apart.
const DryRunFinishReason = "dry-run-simulated"

// dryRunTag prefixes the content of every simulated completion.
const dryRunTag = "[dry-run]"

// newDryRunResponse builds a deterministic stub completion. No network I/O
// happens anywhere on this path.
func newDryRunResponse(providerName, model string, messages []Message) *CompletionResponse {
	return &CompletionResponse{
		Content: fmt.Sprintf("%s simulated completion (provider=%s model=%s messages=%d)",
			dryRunTag, providerName, model, len(messages)),
		Model:        model,
		Provider:     providerName,
		FinishReason: DryRunFinishReason,
	}
}

// IsSimulated reports whether a response came from dry-run mode rather than
// a real backend.
func IsSimulated(resp *CompletionResponse) bool {
	if resp == nil {
		return false
	}
	return resp.FinishReason == DryRunFinishReason || strings.HasPrefix(resp.Content, dryRunTag)
}

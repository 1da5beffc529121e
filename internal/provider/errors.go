package provider

import (
	"fmt"
	"time"
)

// ProviderError is the base classification for backend failures. It carries
// enough context to identify which provider and model failed.
type ProviderError struct {
	Provider string
	Model    string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (model %s): %s", e.Provider, e.Model, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RateLimitError is a transient throttle. Retrying the same model after a
// wait is expected to succeed.
type RateLimitError struct {
	ProviderError

	// RetryAfter is the backend's wait hint. Zero means no hint was given.
	RetryAfter time.Duration

	// ResetAt is when the rate-limit window resets. Zero means no hint.
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider %s (model %s): rate limited: %s", e.Provider, e.Model, e.Message)
}

// QuotaType discriminates what kind of usage limit was exhausted.
type QuotaType string

const (
	QuotaBilling  QuotaType = "billing"
	QuotaRequests QuotaType = "rpm"
	QuotaTokens   QuotaType = "tpm"
	QuotaOther    QuotaType = "other"
)

// QuotaExhaustedError reports that no further requests to this model will
// succeed until a usage limit resets. Never retried on the same model.
type QuotaExhaustedError struct {
	ProviderError
	QuotaType QuotaType
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("provider %s (model %s): quota exhausted (%s): %s", e.Provider, e.Model, e.QuotaType, e.Message)
}

// quotaEscalation is the single policy table mapping each quota type to
// whether escalating to a fallback model can help. Billing exhaustion is
// account-wide, so a cheaper model fails identically; per-minute request and
// token caps are tracked per model.
var quotaEscalation = map[QuotaType]bool{
	QuotaBilling:  false,
	QuotaRequests: true,
	QuotaTokens:   true,
	QuotaOther:    true,
}

// canEscalateQuota reports whether a fallback model is worth trying for the
// given quota type. Unknown types escalate.
func canEscalateQuota(qt QuotaType) bool {
	if escalate, ok := quotaEscalation[qt]; ok {
		return escalate
	}
	return true
}

// ExhaustionError reports that the retry engine ran out of retry and
// fallback options for one logical request.
type ExhaustionError struct {
	Provider string
	Last     error
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("provider %s: all fallback models exhausted: %v", e.Provider, e.Last)
}

func (e *ExhaustionError) Unwrap() error {
	return e.Last
}

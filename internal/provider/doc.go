// Package provider abstracts the LLM backends draftd can dispatch work to.
//
// Three adapters (OpenAI, Anthropic, Google) implement the Client interface
// over langchaingo. Each adapter owns exactly three things: shaping the
// request for its vendor, parsing the vendor response, and classifying
// vendor failures into the shared error taxonomy (ProviderError,
// RateLimitError, QuotaExhaustedError). No raw vendor error crosses the
// package boundary.
//
// All retry, backoff and model-fallback behavior lives in the shared Engine;
// adapters never retry on their own. The Engine consults Decide, a pure
// policy function returning an explicit Verdict (retry, escalate, pause),
// so callers can drive their own state machine off the outcome instead of
// catching errors mid-flight.
//
// Every adapter supports a dry-run mode that performs no network I/O and
// returns a deterministic simulated response, making the whole control loop
// testable without credentials.
package provider

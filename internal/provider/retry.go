package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/draftd/internal/config"
	"github.com/fyrsmithlabs/draftd/internal/logging"
	"go.uber.org/zap"
)

// RetryConfig configures the shared retry/backoff engine.
type RetryConfig struct {
	// MaxRetries is how many times one model is retried before escalating.
	MaxRetries int

	// MaxWait caps both a single backoff and the cumulative wait for one
	// logical request.
	MaxWait time.Duration

	// InitialBackoff is the first wait.
	InitialBackoff time.Duration

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        5,
		MaxWait:           3600 * time.Second,
		InitialBackoff:    10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigFrom converts the loaded configuration into engine form.
func RetryConfigFrom(cfg config.RetryConfig) RetryConfig {
	return RetryConfig{
		MaxRetries:        cfg.MaxRetries,
		MaxWait:           time.Duration(cfg.MaxWaitSeconds * float64(time.Second)),
		InitialBackoff:    time.Duration(cfg.InitialBackoffSeconds * float64(time.Second)),
		BackoffMultiplier: cfg.BackoffMultiplier,
	}
}

// Backoff returns the exponential backoff for the given attempt, clamped to
// MaxWait. Attempt numbering starts at zero.
func Backoff(cfg RetryConfig, attempt int) time.Duration {
	wait := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt))
	if wait > float64(cfg.MaxWait) || math.IsInf(wait, 1) {
		return cfg.MaxWait
	}
	return time.Duration(wait)
}

// VerdictKind is the retry policy's decision for one failure.
type VerdictKind int

const (
	// VerdictRetry waits and retries the same model.
	VerdictRetry VerdictKind = iota

	// VerdictEscalate moves to the next model in the fallback chain.
	VerdictEscalate

	// VerdictPause stops the request; the pipeline should pause.
	VerdictPause
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictRetry:
		return "retry"
	case VerdictEscalate:
		return "escalate"
	case VerdictPause:
		return "pause"
	}
	return "unknown"
}

// Verdict is the policy outcome for one classified failure.
type Verdict struct {
	Kind   VerdictKind
	Wait   time.Duration
	Reason string
}

// Decide maps (attempt number, classified error, config) to a verdict.
// It holds the whole retry policy; the engine only executes verdicts.
//
//   - Rate limits retry the same model with backoff until MaxRetries, then
//     escalate.
//   - Quota exhaustion never retries the same model: it escalates once when
//     the quota type is per-model, pauses when it is account-wide (billing).
//   - Any other provider error gets a single retry at the initial backoff,
//     then pauses.
func Decide(cfg RetryConfig, attempt int, err error) Verdict {
	var quotaErr *QuotaExhaustedError
	var rateErr *RateLimitError

	switch {
	case errors.As(err, &quotaErr):
		if canEscalateQuota(quotaErr.QuotaType) {
			return Verdict{Kind: VerdictEscalate, Reason: quotaErr.Error()}
		}
		return Verdict{Kind: VerdictPause, Reason: quotaErr.Error()}

	case errors.As(err, &rateErr):
		if attempt >= cfg.MaxRetries {
			return Verdict{Kind: VerdictEscalate, Reason: rateErr.Error()}
		}
		return Verdict{Kind: VerdictRetry, Wait: rateLimitWait(cfg, attempt, rateErr), Reason: rateErr.Error()}

	default:
		if attempt == 0 {
			return Verdict{Kind: VerdictRetry, Wait: cfg.InitialBackoff, Reason: err.Error()}
		}
		return Verdict{Kind: VerdictPause, Reason: err.Error()}
	}
}

// rateLimitWait computes the wait for a rate-limited attempt.
//
// The base wait is max(backend retry-after hint, exponential backoff). When
// the backend also reports a reset time in the future, the shorter of
// (time until reset, base wait) wins: waiting past the earliest credible
// promise wastes the budget. The result is always clamped to MaxWait.
func rateLimitWait(cfg RetryConfig, attempt int, rateErr *RateLimitError) time.Duration {
	wait := Backoff(cfg, attempt)
	if rateErr.RetryAfter > wait {
		wait = rateErr.RetryAfter
	}
	if !rateErr.ResetAt.IsZero() {
		if until := time.Until(rateErr.ResetAt); until > 0 && until < wait {
			wait = until
		}
	}
	if wait > cfg.MaxWait {
		wait = cfg.MaxWait
	}
	return wait
}

// Engine executes completion requests with retry, backoff and model
// fallback. One Engine is shared by all providers.
type Engine struct {
	cfg   RetryConfig
	log   *logging.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithSleepFunc replaces the engine's wait primitive. Tests use this to run
// the retry loop without real delays.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// NewEngine creates a retry engine.
func NewEngine(cfg RetryConfig, log *logging.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	e := &Engine{
		cfg:   cfg,
		log:   log,
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sleepCtx blocks for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs one logical completion request against the client, walking its
// model escalation chain. It returns the first successful response, a
// context error if the caller cancels mid-wait, or a terminal taxonomy
// error once every option is spent. Cumulative wait across all attempts and
// models never exceeds MaxWait.
func (e *Engine) Do(ctx context.Context, client Client, messages []Message, opts Options) (*CompletionResponse, error) {
	models := client.Models()
	if len(models) == 0 {
		return nil, fmt.Errorf("provider %s: no models configured", client.Name())
	}

	var slept time.Duration
	var lastErr error

	for _, model := range models {
		attempt := 0

	attempts:
		for {
			callOpts := opts
			callOpts.Model = model

			resp, err := client.Complete(ctx, messages, callOpts)
			if err == nil {
				if attempt > 0 {
					e.log.Info(ctx, "request recovered after retries",
						zap.String("provider", client.Name()),
						zap.String("model", model),
						zap.Int("attempts", attempt))
				}
				return resp, nil
			}
			lastErr = err

			verdict := Decide(e.cfg, attempt, err)
			switch verdict.Kind {
			case VerdictRetry:
				wait := verdict.Wait
				remaining := e.cfg.MaxWait - slept
				if remaining <= 0 {
					e.log.Warn(ctx, "retry budget spent, escalating",
						zap.String("provider", client.Name()),
						zap.String("model", model))
					break attempts
				}
				if wait > remaining {
					wait = remaining
				}

				e.log.Warn(ctx, "request failed, backing off",
					zap.String("provider", client.Name()),
					zap.String("model", model),
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.String("reason", verdict.Reason))

				if err := e.sleep(ctx, wait); err != nil {
					return nil, err
				}
				slept += wait
				attempt++

			case VerdictEscalate:
				e.log.Warn(ctx, "escalating to fallback model",
					zap.String("provider", client.Name()),
					zap.String("model", model),
					zap.String("reason", verdict.Reason))
				break attempts

			case VerdictPause:
				e.log.Error(ctx, "request is not recoverable",
					zap.String("provider", client.Name()),
					zap.String("model", model),
					zap.String("reason", verdict.Reason))
				return nil, lastErr
			}
		}
	}

	return nil, &ExhaustionError{Provider: client.Name(), Last: lastErr}
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forkcrawl/pkg/config"
	errs "forkcrawl/pkg/errors"
	"forkcrawl/pkg/logger"
)

// Action tells the fetcher what to do after a failed request
type Action int

const (
	// ActionRetry re-issues the same request after Delay
	ActionRetry Action = iota
	// ActionRotate switches to the next credential and retries
	ActionRotate
	// ActionFailPermanent ends the project without further requests
	ActionFailPermanent
	// ActionFailTransient gives up after the attempt budget is spent
	ActionFailTransient
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionRotate:
		return "rotate"
	case ActionFailPermanent:
		return "fail_permanent"
	case ActionFailTransient:
		return "fail_transient"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Policy.Decide
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Policy maps classified failures to actions. Rate limiting never consumes
// the attempt budget.
type Policy struct {
	MaxAttempts      int
	NetworkBackoff   BackoffStrategy
	StatusBackoff    BackoffStrategy
	ResetGrace       time.Duration
	MaxRateLimitWait time.Duration
}

// DefaultPolicy returns the policy used for GitHub fork listings
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:      3,
		NetworkBackoff:   &ConstantBackoff{Delay: 5 * time.Second},
		StatusBackoff:    &ConstantBackoff{Delay: 2 * time.Second},
		ResetGrace:       5 * time.Second,
		MaxRateLimitWait: 60 * time.Second,
	}
}

// NewPolicy builds a policy from the retry section of the configuration
func NewPolicy(cfg *config.RetryConfig) *Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return &Policy{
		MaxAttempts:      cfg.MaxAttempts,
		NetworkBackoff:   NewBackoff(cfg.Strategy, cfg.NetworkErrorDelay, 8*cfg.NetworkErrorDelay),
		StatusBackoff:    NewBackoff(cfg.Strategy, cfg.ServerErrorDelay, 8*cfg.ServerErrorDelay),
		ResetGrace:       cfg.ResetGrace,
		MaxRateLimitWait: cfg.MaxRateLimitWait,
	}
}

// Decide returns the action for the given failure. attempt is the 1-based
// number of the transient attempt that just failed.
func (p *Policy) Decide(attempt int, kind errs.ErrorType) Decision {
	switch {
	case kind == errs.ErrorTypeRateLimit:
		return Decision{Action: ActionRotate}
	case errs.IsPermanent(kind):
		return Decision{Action: ActionFailPermanent}
	}

	if attempt >= p.MaxAttempts {
		return Decision{Action: ActionFailTransient}
	}

	if kind == errs.ErrorTypeNetwork {
		return Decision{Action: ActionRetry, Delay: p.NetworkBackoff.NextDelay(attempt)}
	}
	return Decision{Action: ActionRetry, Delay: p.StatusBackoff.NextDelay(attempt)}
}

// ResetWait is how long to sleep once every credential has been tried:
// until the reported reset plus a grace period, capped at MaxRateLimitWait.
func (p *Policy) ResetWait(reset, now time.Time) time.Duration {
	wait := reset.Sub(now)
	if wait < 0 {
		wait = 0
	}
	wait += p.ResetGrace
	if wait > p.MaxRateLimitWait {
		wait = p.MaxRateLimitWait
	}
	return wait
}

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds retry configuration for Do
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return true
}

// Do executes an operation with retry logic
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}

	var lastErr error
	attempt := 0

	for {
		attempt++

		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt - 1,
					"last_error": lastErr.Error(),
				})
			}
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		lastErr = err

		if !cfg.RetryIf(err) {
			return err
		}

		delay := cfg.Backoff.NextDelay(attempt)

		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": cfg.MaxAttempts,
			})
		}

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, err
}

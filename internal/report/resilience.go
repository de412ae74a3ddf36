package report

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/deliverygate/internal/config"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 5s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 30s)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// RetryConfigFrom converts the millisecond settings of a loaded config.
// Zero fields keep their defaults.
func RetryConfigFrom(cfg config.RetryConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.InitialIntervalMS > 0 {
		rc.InitialInterval = time.Duration(cfg.InitialIntervalMS) * time.Millisecond
	}
	if cfg.MaxIntervalMS > 0 {
		rc.MaxInterval = time.Duration(cfg.MaxIntervalMS) * time.Millisecond
	}
	if cfg.MaxElapsedMS > 0 {
		rc.MaxElapsedTime = time.Duration(cfg.MaxElapsedMS) * time.Millisecond
	}
	return rc
}

// NewBreaker creates the circuit breaker guarding store reads. Zero fields
// fall back to 5 consecutive failures and a 30s open timeout.
func NewBreaker(name string, cfg config.BreakerConfig) *gobreaker.CircuitBreaker {
	failures := uint32(5)
	if cfg.ConsecutiveFailures > 0 {
		failures = uint32(cfg.ConsecutiveFailures)
	}
	timeout := 30 * time.Second
	if cfg.OpenTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.OpenTimeoutSeconds) * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // A single probe in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not a store failure
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})
}

// readWithRetry runs read through the circuit breaker, retrying transient
// failures with exponential backoff.
func readWithRetry(ctx context.Context, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig, read func(context.Context) (interface{}, error)) (interface{}, error) {
	var result interface{}

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		res, err := cb.Execute(func() (interface{}, error) {
			return read(ctx)
		})
		if err != nil {
			// Circuit is open - don't retry
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		result = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryCfg.InitialInterval
	policy.MaxInterval = retryCfg.MaxInterval
	policy.MaxElapsedTime = retryCfg.MaxElapsedTime
	policy.Multiplier = retryCfg.Multiplier
	policy.RandomizationFactor = retryCfg.RandomizationFactor

	notify := func(err error, wait time.Duration) {
		log.Printf("store read failed, retrying in %s: %v", wait, err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
	return result, err
}

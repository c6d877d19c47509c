package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryableFunc classifies an error returned by a provider operation.
type RetryableFunc func(err error) bool

// ExecuteAction wraps a function with retry logic, including exponential backoff,
// jitter, and context timeouts.
//
// opName is used for logging. isRetryable decides whether a failed attempt is
// transient; a nil classifier retries everything.
func ExecuteAction(ctx context.Context, cfg RetryConfig, opName string, isRetryable RetryableFunc, operation func(ctx context.Context) error) error {
	if cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.OperationTimeout)
		defer cancel()
	}

	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// Stop immediately if the context is cancelled or timed out.
		if ctx.Err() != nil {
			return fmt.Errorf("%s timed out before attempt %d: %w", opName, attempt+1, ctx.Err())
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}

		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxRetries {
			break
		}

		slog.Warn("Transient error detected, scheduling retry",
			"operation", opName,
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"error", lastErr)

		select {
		case <-time.After(backoffDelay(cfg, attempt)):
			continue
		case <-ctx.Done():
			return fmt.Errorf("%s context cancelled during backoff: %w", opName, ctx.Err())
		}
	}

	if cfg.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("%s failed after %d retries: %w", opName, cfg.MaxRetries, lastErr)
}

// backoffDelay is BaseDelay * 2^attempt plus up to 50% jitter, capped at MaxDelay.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	backoff := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))

	var jitter time.Duration
	if half := int64(backoff) / 2; half > 0 {
		jitter = time.Duration(rand.Int63n(half))
	}
	sleepDuration := time.Duration(backoff) + jitter

	if cfg.MaxDelay > 0 {
		sleepDuration = min(sleepDuration, cfg.MaxDelay)
	}
	return sleepDuration
}

package usecase

import (
	"context"
	"fmt"
	"time"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// withRetry calls fn until it succeeds, attempts run out or ctx is done.
// The delay doubles after each failure and is capped at MaxDelay.
func withRetry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			break
		}

		backoff := p.BaseDelay << (attempt - 1)
		if p.MaxDelay > 0 && backoff > p.MaxDelay {
			backoff = p.MaxDelay
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("retry canceled after %d attempts: %w", attempt, lastErr)
		}
	}

	return lastErr
}

package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storesync/internal/client/shopify"
	"storesync/internal/metrics"
)

// RetryPolicy retries an operation with exponential backoff. Delays are
// BaseDelay * 2^(attempt-1), never shorter than an upstream Retry-After hint
// or the previous delay, and capped at MaxDelay.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Logger    *zap.Logger

	// Sleep waits between attempts; tests replace it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var lastErr error
	var prev time.Duration
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts || !isRetryable(ctx, err) {
			break
		}
		delay := p.delay(attempt, err, prev)
		prev = delay
		if p.Logger != nil {
			p.Logger.Warn("upstream call failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
		}
		metrics.UpstreamRetriesTotal.Inc()
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (p RetryPolicy) delay(attempt int, err error, prev time.Duration) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := max(base<<(attempt-1), prev)
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) {
		d = max(d, apiErr.RetryAfter)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, shopify.ErrMissingCredentials) || errors.Is(err, shopify.ErrDecode) {
		return false
	}
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync/internal/client/shopify"
)

type delayRecorder struct {
	delays []time.Duration
}

func (r *delayRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetrySucceedsAfterTwoFailures(t *testing.T) {
	rec := &delayRecorder{}
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Second, Sleep: rec.sleep}

	calls := 0
	err := policy.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestRetryReturnsFinalError(t *testing.T) {
	rec := &delayRecorder{}
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Second, Sleep: rec.sleep}

	calls := 0
	err := policy.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return &shopify.APIError{Status: http.StatusBadGateway, Body: "attempt"}
	})
	var apiErr *shopify.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 3, calls)
	require.Len(t, rec.delays, 2)
	for i := 1; i < len(rec.delays); i++ {
		assert.GreaterOrEqual(t, rec.delays[i], rec.delays[i-1])
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	rec := &delayRecorder{}
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Second, Sleep: rec.sleep}

	calls := 0
	err := policy.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return &shopify.APIError{Status: http.StatusUnauthorized}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestRetryHonoursRetryAfterAndCap(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, 3*time.Second, policy.delay(1, &shopify.APIError{Status: 429, RetryAfter: 3 * time.Second}, 0))
	assert.Equal(t, 5*time.Second, policy.delay(5, errors.New("x"), 0))
	assert.Equal(t, 5*time.Second, policy.delay(1, &shopify.APIError{Status: 429, RetryAfter: time.Minute}, 0))
}

func TestRetryDelaysNeverShrinkAfterRetryAfter(t *testing.T) {
	rec := &delayRecorder{}
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Sleep: rec.sleep}

	calls := 0
	err := policy.Do(context.Background(), "test", func(context.Context) error {
		calls++
		switch calls {
		case 1:
			return &shopify.APIError{Status: http.StatusTooManyRequests, RetryAfter: 10 * time.Second}
		case 2:
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, rec.delays)
}

func TestRetryDoesNotRepeatDecodeErrors(t *testing.T) {
	rec := &delayRecorder{}
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Second, Sleep: rec.sleep}

	calls := 0
	err := policy.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return fmt.Errorf("decode orders: %w", shopify.ErrDecode)
	})
	assert.ErrorIs(t, err, shopify.ErrDecode)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 5, BaseDelay: time.Hour}

	calls := 0
	err := policy.Do(ctx, "test", func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

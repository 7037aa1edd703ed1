package limiter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lim := NewMemoryLimiter(3, time.Minute)
	lim.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		d, err := lim.Allow(ctx, "shop-a")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		now = now.Add(10 * time.Second)
	}

	d, err := lim.Allow(ctx, "shop-a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	// other shops have their own window
	d, _ = lim.Allow(ctx, "shop-b")
	assert.True(t, d.Allowed)

	// the first hit slides out after a full window
	now = now.Add(31 * time.Second)
	d, _ = lim.Allow(ctx, "shop-a")
	assert.True(t, d.Allowed)
}

func TestMemoryLimiterEvictsIdleKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lim := NewMemoryLimiter(10, time.Minute)
	lim.now = func() time.Time { return now }

	_, _ = lim.Allow(ctx, "a")
	_, _ = lim.Allow(ctx, "b")
	assert.Equal(t, 2, lim.Len())

	now = now.Add(2 * time.Minute)
	_, _ = lim.Allow(ctx, "c")
	assert.Equal(t, 1, lim.Len())
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("SS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	lim := NewRedisLimiter(client, "storesync-test", 2, time.Minute)
	key := "shop-" + time.Now().Format("150405.000000")

	for i := 0; i < 2; i++ {
		d, err := lim.Allow(ctx, key)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := lim.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

package cronrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAddRejectsBadSpec(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	_, err := r.Add("broken", "not a spec", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunnerRunsJobsAndSurvivesPanics(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	var ok, failed atomic.Int32

	_, err := r.Add("ok", "@every 1s", func(context.Context) error {
		ok.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = r.Add("panics", "@every 1s", func(context.Context) error {
		failed.Add(1)
		panic("boom")
	})
	require.NoError(t, err)
	_, err = r.Add("errors", "@every 1s", func(context.Context) error {
		return errors.New("upstream down")
	})
	require.NoError(t, err)

	next := r.Next()
	assert.Len(t, next, 3)
	assert.Contains(t, next, "ok")

	r.Start()
	assert.Eventually(t, func() bool { return ok.Load() >= 2 && failed.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
	r.Stop()
}

func TestRunnerPassesBaseContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "tenant-sync")
	r := New(nil, ctx)

	got := make(chan any, 1)
	r.run("probe", func(ctx context.Context) error {
		got <- ctx.Value(key{})
		return nil
	})
	assert.Equal(t, "tenant-sync", <-got)
}

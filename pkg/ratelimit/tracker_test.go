package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/metrics"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker()

	_, ok, err := tracker.Get(ctx, "GITHUB_TOKEN_1")
	require.NoError(t, err)
	assert.False(t, ok)

	reset := time.Unix(1700000000, 0).UTC()
	require.NoError(t, tracker.Update(ctx, State{Credential: "GITHUB_TOKEN_2", Remaining: 10, Limit: 5000, ResetAt: reset}))
	require.NoError(t, tracker.Update(ctx, State{Credential: "GITHUB_TOKEN_1", Remaining: 0, Limit: 5000, ResetAt: reset}))
	require.NoError(t, tracker.Update(ctx, State{Credential: "GITHUB_TOKEN_2", Remaining: 9, Limit: 5000, ResetAt: reset}))

	state, ok, err := tracker.Get(ctx, "GITHUB_TOKEN_2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, state.Remaining)

	all, err := tracker.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "GITHUB_TOKEN_1", all[0].Credential)
	assert.True(t, all[0].Exhausted())

	assert.Equal(t, float64(9), testutil.ToFloat64(metrics.RateLimitRemaining.WithLabelValues("GITHUB_TOKEN_2")))
}

func newLocalRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisTracker(t *testing.T) {
	client := newLocalRedis(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("forkcrawl-test:%d:", time.Now().UnixNano())
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	})

	runTrackerContract(t, NewRedisTracker(client, prefix, logger.NewNopLogger()))
}

// runTrackerContract checks behaviour shared by every Tracker backend
func runTrackerContract(t *testing.T, tracker Tracker) {
	t.Helper()
	ctx := context.Background()
	reset := time.Unix(1700000000, 0).UTC()
	updated := time.UnixMilli(1699999000123).UTC()

	_, ok, err := tracker.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tracker.Update(ctx, State{Credential: "b", Limit: 5000, Remaining: 0, Used: 5000, ResetAt: reset, UpdatedAt: updated}))
	require.NoError(t, tracker.Update(ctx, State{Credential: "a", Limit: 5000, Remaining: 4321, Used: 679, ResetAt: reset, UpdatedAt: updated}))

	state, ok, err := tracker.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, state.Remaining)
	assert.Equal(t, 5000, state.Used)
	assert.True(t, reset.Equal(state.ResetAt))
	assert.True(t, updated.Equal(state.UpdatedAt))

	all, err := tracker.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Credential)
	assert.Equal(t, 4321, all[0].Remaining)
	assert.Equal(t, "b", all[1].Credential)
}

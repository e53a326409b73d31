package middleware

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWindow(t *testing.T) {
	d, err := decodeWindow([]int64{1, 3, 0})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)

	d, err = decodeWindow([]int64{0, 0, 1500})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)

	d, err = decodeWindow([]int64{0, 0, -20})
	require.NoError(t, err)
	assert.Zero(t, d.RetryAfter)

	_, err = decodeWindow([]int64{1})
	assert.Error(t, err)
}

// newRedisLimiter connects to GIGCONNECT_TEST_REDIS_ADDR and skips when no
// server is reachable.
func newRedisLimiter(t *testing.T) (*RedisLimiter, string) {
	t.Helper()
	addr := os.Getenv("GIGCONNECT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping integration test: GIGCONNECT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: cannot connect to redis: %v", err)
	}

	key := "ratelimit:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })
	return NewRedisLimiter(client), key
}

func TestRedisLimiter_ConcurrentCallersShareOneBudget(t *testing.T) {
	l, key := newRedisLimiter(t)
	rule := RateRule{Limit: 5, Window: time.Minute}

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), key, rule)
			if assert.NoError(t, err) && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), allowed.Load())

	d, err := l.Allow(context.Background(), key, rule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.RetryAfter > 0 && d.RetryAfter <= time.Minute, d.RetryAfter)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	l, key := newRedisLimiter(t)
	now := time.Now()
	l.now = func() time.Time { return now }
	rule := RateRule{Limit: 2, Window: time.Minute}

	for i, want := range []int{1, 0} {
		d, err := l.Allow(context.Background(), key, rule)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d", i)
		assert.Equal(t, want, d.Remaining)
	}
	d, err := l.Allow(context.Background(), key, rule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	now = now.Add(time.Minute + time.Millisecond)
	d, err = l.Allow(context.Background(), key, rule)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

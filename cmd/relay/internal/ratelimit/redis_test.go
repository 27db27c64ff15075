package ratelimit_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inacomp/submission-judge/cmd/relay/internal/ratelimit"
)

func TestRedisLimiterStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := ratelimit.NewRedisLimitStore(ratelimit.RedisLimiterConfig{
		RedisClient: rdb,
		LimiterKey:  "ws",
		PerMinute:   3,
	})

	t.Run("LimitsPerIdentifier", func(t *testing.T) {
		for i := range 3 {
			allowed, err := store.Allow("10.0.0.1")
			require.NoError(t, err)
			assert.True(t, allowed, "request %d should be allowed", i+1)
		}

		allowed, err := store.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.False(t, allowed, "fourth request should be denied")

		allowed, err = store.Allow("10.0.0.2")
		require.NoError(t, err)
		assert.True(t, allowed, "other identifiers have their own window")
	})

	t.Run("WindowExpires", func(t *testing.T) {
		for range 4 {
			_, err := store.Allow("10.0.0.3")
			require.NoError(t, err)
		}
		mr.FastForward(61 * time.Second)

		allowed, err := store.Allow("10.0.0.3")
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRedisLimiterStoreUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		failOpen bool
	}{
		{name: "FailOpen", failOpen: true},
		{name: "FailClosed", failOpen: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
			t.Cleanup(func() { _ = rdb.Close() })
			mr.Close()

			store := ratelimit.NewRedisLimitStore(ratelimit.RedisLimiterConfig{
				RedisClient: rdb,
				LimiterKey:  "ws",
				PerMinute:   3,
				FailOpen:    tt.failOpen,
			})

			allowed, err := store.Allow("10.0.0.1")
			require.Error(t, err)
			assert.Equal(t, tt.failOpen, allowed)
		})
	}
}

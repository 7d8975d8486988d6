package webhook

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReplayGuard(t *testing.T) {
	guard := NewMemoryReplayGuard(16, 50*time.Millisecond)
	ctx := context.Background()

	first, err := guard.Claim(ctx, "1760000000.ab")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := guard.Claim(ctx, "1760000000.ab")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := guard.Claim(ctx, "1760000000.cd")
	require.NoError(t, err)
	assert.True(t, other)

	time.Sleep(100 * time.Millisecond)
	expired, err := guard.Claim(ctx, "1760000000.ab")
	require.NoError(t, err)
	assert.True(t, expired, "keys are forgotten after the ttl")
}

func TestMemoryReplayGuard_ConcurrentClaimsAdmitOne(t *testing.T) {
	guard := NewMemoryReplayGuard(16, time.Minute)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := guard.Claim(context.Background(), "same"); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestRedisReplayGuard(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	guard := NewRedisReplayGuard(client, "webhook:replay:", 10*time.Minute)
	ctx := context.Background()

	first, err := guard.Claim(ctx, "1760000000.ab")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := guard.Claim(ctx, "1760000000.ab")
	require.NoError(t, err)
	assert.False(t, again)

	assert.True(t, mr.Exists("webhook:replay:1760000000.ab"))
	assert.Equal(t, 10*time.Minute, mr.TTL("webhook:replay:1760000000.ab"))

	mr.FastForward(11 * time.Minute)
	afterExpiry, err := guard.Claim(ctx, "1760000000.ab")
	require.NoError(t, err)
	assert.True(t, afterExpiry)
}

func TestRedisReplayGuard_StoreDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err = NewRedisReplayGuard(client, "p:", time.Minute).Claim(context.Background(), "k")
	assert.Error(t, err)
}

package tokenconfig

import (
	"context"
	"testing"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = models.TokenConfig{
	"gpt-4o": {Prompt: 2.5, Completion: 10, Context: 128000},
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "openrouter")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "openrouter", sample, 0))
	got, ok, err := c.Get(ctx, "openrouter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample, got)

	// capacity 2 evicts the least recently used entry
	require.NoError(t, c.Set(ctx, "a", sample, 0))
	require.NoError(t, c.Set(ctx, "b", sample, 0))
	_, ok, _ = c.Get(ctx, "openrouter")
	assert.False(t, ok)
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache(10, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sample, 0))
	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "openrouter:u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "openrouter:u1", sample, time.Minute))
	assert.True(t, mr.Exists("tokenconfig:openrouter:u1"))

	got, ok, err := c.Get(ctx, "openrouter:u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "openrouter:u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("tokenconfig:bad", "not-json"))
	_, _, err := NewRedisCache(client).Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	c, err := New(models.CacheConfig{Backend: models.CacheBackendMemory}, nil, time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	_, err = New(models.CacheConfig{Backend: models.CacheBackendRedis}, nil, time.Minute)
	assert.Error(t, err)

	_, err = New(models.CacheConfig{Backend: "memcached"}, nil, time.Minute)
	assert.Error(t, err)
}

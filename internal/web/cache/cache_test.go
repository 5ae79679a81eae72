package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(Config{TTL: time.Minute, Prefix: "test:"})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	r, err := NewRedis(client, Config{TTL: time.Minute, Prefix: "test:"})
	require.NoError(t, err)
	return r, mr
}

func TestBackends(t *testing.T) {
	backends := map[string]func(t *testing.T) Cache{
		"memory": func(t *testing.T) Cache { return newMemory(t) },
		"redis": func(t *testing.T) Cache {
			r, _ := newRedis(t)
			return r
		},
	}

	for name, newCache := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newCache(t)

			_, err := c.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
			require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
			require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

			v, err := c.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), v)

			require.NoError(t, c.Delete(ctx, "a", "b"))
			_, err = c.Get(ctx, "b")
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, c.Clear(ctx))
			_, err = c.Get(ctx, "c")
			assert.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)

	require.NoError(t, m.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, m.Set(ctx, "forever", []byte("y"), -1))

	time.Sleep(20 * time.Millisecond)
	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)

	m.sweep(time.Now())
	assert.Equal(t, 1, m.Len())

	v, err := m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), v)
}

func TestMemoryCancelledContext(t *testing.T) {
	m := newMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.Set(ctx, "a", nil, 0), context.Canceled)
}

func TestRedisExpiryAndPrefix(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t)

	require.NoError(t, r.Set(ctx, "a", []byte("1"), 0))
	assert.True(t, mr.Exists("test:a"))
	assert.Equal(t, time.Minute, mr.TTL("test:a"))

	mr.FastForward(2 * time.Minute)
	_, err := r.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisClearKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t)

	require.NoError(t, mr.Set("other", "v"))
	require.NoError(t, r.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, r.Clear(ctx))

	assert.False(t, mr.Exists("test:a"))
	assert.True(t, mr.Exists("other"))
}

func TestNewRedisRequiresClient(t *testing.T) {
	_, err := NewRedis(nil, DefaultConfig())
	assert.Error(t, err)
}

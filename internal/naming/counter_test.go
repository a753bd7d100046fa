package naming

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func TestNormalizeAndNext(t *testing.T) {
	assert.Equal(t, 1, Normalize(0))
	assert.Equal(t, 1, Normalize(-4))
	assert.Equal(t, 1, Normalize(1000))
	assert.Equal(t, 999, Normalize(999))

	assert.Equal(t, 2, Next(1))
	assert.Equal(t, 999, Next(998))
	assert.Equal(t, 1, Next(999))
}

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter(0)

	v, err := c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, c.Set(ctx, 998))
	v, _ = c.Advance(ctx)
	assert.Equal(t, 998, v)
	v, _ = c.Advance(ctx)
	assert.Equal(t, 999, v)
	v, _ = c.Advance(ctx)
	assert.Equal(t, 1, v)

	assert.ErrorIs(t, c.Set(ctx, 0), ErrCounterRange)
	assert.ErrorIs(t, c.Set(ctx, 1000), ErrCounterRange)
}

func TestRedisCounter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	key := "media-converter-test:" + t.Name()
	rc, err := NewRedisCounter(addr, key)
	require.NoError(t, err)
	t.Cleanup(func() {
		client := redis.NewClient(&redis.Options{Addr: addr})
		client.Del(ctx, key)
		_ = client.Close()
		_ = rc.Close()
	})

	v, err := rc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, rc.Set(ctx, 999))
	v, err = rc.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 999, v)

	v, err = rc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.ErrorIs(t, rc.Set(ctx, 1000), ErrCounterRange)
}

func TestRedisCounterUnreachable(t *testing.T) {
	_, err := NewRedisCounter("127.0.0.1:1", "")
	assert.Error(t, err)
}

package naming

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the counter when no key is configured.
const DefaultRedisKey = "media-converter:file_counter"

// advanceScript normalizes, hands out and advances the counter in one
// server-side step so concurrent converters never share a value.
var advanceScript = redis.NewScript(`
local v = tonumber(redis.call('GET', KEYS[1]) or '1')
if v == nil or v < 1 or v > 999 then v = 1 end
local nxt = v + 1
if v >= 999 then nxt = 1 end
redis.call('SET', KEYS[1], nxt)
return v
`)

// RedisCounter is a CounterStore shared by every process using the same
// Redis (or Valkey) server.
type RedisCounter struct {
	client redis.UniversalClient
	key    string
}

// NewRedisCounter connects to addr and verifies the connection.
func NewRedisCounter(addr, key string) (*RedisCounter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return NewRedisCounterFromClient(rdb, key), nil
}

// NewRedisCounterFromClient wraps an existing client.
func NewRedisCounterFromClient(client redis.UniversalClient, key string) *RedisCounter {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCounter{client: client, key: key}
}

// Advance implements CounterStore.
func (r *RedisCounter) Advance(ctx context.Context) (int, error) {
	v, err := advanceScript.Run(ctx, r.client, []string{r.key}).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: redis: %w", ErrCounterPersist, err)
	}
	return Normalize(v), nil
}

// Current implements CounterStore.
func (r *RedisCounter) Current(ctx context.Context) (int, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return MinCounter, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter from Redis: %w", err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return MinCounter, nil
	}
	return Normalize(n), nil
}

// Set implements CounterStore.
func (r *RedisCounter) Set(ctx context.Context, n int) error {
	if err := ValidateCounter(n); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, n, 0).Err(); err != nil {
		return fmt.Errorf("failed to store counter in Redis: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisCounter) Close() error {
	return r.client.Close()
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/verifiq/phone-api-go/internal/ratelimit"
)

// RedisKV is a Redis implementation of ratelimit.KV.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV creates a Redis-backed KV binding. All keys are stored under
// the "ratelimit:" prefix so counters are easy to inspect and flush.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{
		client: client,
		prefix: "ratelimit:",
	}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ratelimit.ErrKeyNotFound
		}

		return nil, err
	}

	return value, nil
}

func (r *RedisKV) Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Callers keep expirations at least the safety margin away, so a
		// non-positive TTL means clock trouble; fall back to the margin
		// rather than issuing a SET that Redis would reject.
		ttl = ratelimit.SafetyMargin
	}

	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ ratelimit.KV = (*RedisKV)(nil)

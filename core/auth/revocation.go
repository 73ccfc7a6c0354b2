package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers logged-out token ids until they would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// redisKV is the slice of the go-redis client the revoker needs.
type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRevoker stores revoked token ids as expiring Redis keys.
type RedisRevoker struct {
	client redisKV
	prefix string
}

func NewRedisRevoker(client redisKV) *RedisRevoker {
	return &RedisRevoker{client: client, prefix: "albumvault:revoked:"}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.prefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// NopRevoker is used when Redis is disabled; logout then only discards the
// token client side.
type NopRevoker struct{}

func (NopRevoker) Revoke(context.Context, string, time.Time) error   { return nil }
func (NopRevoker) IsRevoked(context.Context, string) (bool, error) { return false, nil }

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRedemptionGuard tracks redeemed token ids in Redis so every replica
// sees the same redemption state. Keys live only as long as the token would
// have, so the set never needs sweeping.
type RedisRedemptionGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisRedemptionGuard wraps an existing client. Pass an empty prefix to
// use the default "identity:redeemed:".
func NewRedisRedemptionGuard(client *redis.Client, prefix string) *RedisRedemptionGuard {
	if prefix == "" {
		prefix = "identity:redeemed:"
	}
	return &RedisRedemptionGuard{client: client, prefix: prefix}
}

// Redeem implements RedemptionGuard with a single SETNX round trip.
func (g *RedisRedemptionGuard) Redeem(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+tokenID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redemption guard: %w", err)
	}
	return ok, nil
}

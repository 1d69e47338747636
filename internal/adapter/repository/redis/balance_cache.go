package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultBalanceTTL bounds how long a cached balance may be served.
const DefaultBalanceTTL = 30 * time.Second

// BalanceCache implements usecase.BalanceCache using Redis.
type BalanceCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewBalanceCache creates a new BalanceCache. A zero ttl uses DefaultBalanceTTL.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = DefaultBalanceTTL
	}

	return &BalanceCache{
		client: client,
		prefix: "balance:",
		ttl:    ttl,
	}
}

// GetBalance returns the cached balance and whether it was present.
func (c *BalanceCache) GetBalance(ctx context.Context, userID string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		// unreadable entries are treated as a miss and dropped
		_ = c.client.Del(ctx, c.prefix+userID).Err()
		return decimal.Zero, false, fmt.Errorf("corrupt cached balance for %s: %w", userID, err)
	}

	return balance, true, nil
}

// SetBalance stores the balance with the cache TTL.
func (c *BalanceCache) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	return c.client.Set(ctx, c.prefix+userID, balance.String(), c.ttl).Err()
}

// Invalidate removes the cached balance.
func (c *BalanceCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.prefix+userID).Err()
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"meridian/internal/adapters/redis"
	"meridian/pkg/errors"
)

// BalanceCache stores the last known on-chain token balance per
// fund/wallet pair. The ledger stays authoritative; the cache only
// absorbs repeated balance reads and is refreshed by the reconciler.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache creates a balance cache with the given TTL
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

type cachedBalance struct {
	Balance   decimal.Decimal `json:"balance"`
	FetchedAt time.Time       `json:"fetched_at"`
}

func balanceKey(tokenAddress, wallet string) string {
	return fmt.Sprintf("balance:%s:%s", tokenAddress, wallet)
}

// Get returns the cached balance, or ErrNotFound on a miss
func (c *BalanceCache) Get(ctx context.Context, tokenAddress, wallet string) (decimal.Decimal, error) {
	var cached cachedBalance
	if err := c.client.Get(ctx, balanceKey(tokenAddress, wallet), &cached); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return decimal.Zero, err
		}
		return decimal.Zero, errors.Wrap(err, "failed to read balance cache")
	}
	return cached.Balance, nil
}

// Set stores a freshly fetched balance
func (c *BalanceCache) Set(ctx context.Context, tokenAddress, wallet string, balance decimal.Decimal) error {
	cached := cachedBalance{Balance: balance, FetchedAt: time.Now().UTC()}
	return c.client.Set(ctx, balanceKey(tokenAddress, wallet), cached, c.ttl)
}

// Invalidate drops a cached balance, called after mints touch the wallet
func (c *BalanceCache) Invalidate(ctx context.Context, tokenAddress, wallet string) error {
	return c.client.Delete(ctx, balanceKey(tokenAddress, wallet))
}

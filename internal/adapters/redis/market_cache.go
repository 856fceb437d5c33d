package redis

import (
	"context"
	"time"

	"exconnect/internal/adapters/exchanges"
	"exconnect/pkg/errors"
)

const marketKeyPrefix = "exconnect:markets:"

// MarketCache persists loaded markets so restarts skip the exchange's
// market endpoint until the TTL expires.
type MarketCache struct {
	client *Client
	ttl    time.Duration
}

var _ exchanges.MarketStore = (*MarketCache)(nil)

// NewMarketCache returns a cache over client. ttl 0 keeps entries forever.
func NewMarketCache(client *Client, ttl time.Duration) *MarketCache {
	return &MarketCache{client: client, ttl: ttl}
}

// MarketKey is the redis key holding exchange's market list.
func MarketKey(exchange string) string {
	return marketKeyPrefix + exchange
}

// LoadMarkets returns the cached markets, or nil when none are stored.
func (c *MarketCache) LoadMarkets(ctx context.Context, exchange string) ([]*exchanges.Market, error) {
	var markets []*exchanges.Market
	err := c.client.GetJSON(ctx, MarketKey(exchange), &markets)
	if errors.Is(err, errors.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s markets", exchange)
	}
	return markets, nil
}

// SaveMarkets replaces the cached markets of exchange.
func (c *MarketCache) SaveMarkets(ctx context.Context, exchange string, markets []*exchanges.Market) error {
	if err := c.client.SetJSON(ctx, MarketKey(exchange), markets, c.ttl); err != nil {
		return errors.Wrapf(err, "save %s markets", exchange)
	}
	return nil
}

// Invalidate drops the cached markets of exchange.
func (c *MarketCache) Invalidate(ctx context.Context, exchange string) error {
	return c.client.Delete(ctx, MarketKey(exchange))
}

package pricing

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const priceKeyPrefix = "price:"

// CachedSource wraps a Source with a Redis cache so repeated marks within
// a sync (and across concurrent account syncs) hit the upstream API once
// per TTL window.
type CachedSource struct {
	source Source
	client *redis.Client
	ttl    time.Duration
}

// NewCachedSource creates a caching wrapper around source.
func NewCachedSource(source Source, client *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, client: client, ttl: ttl}
}

// GetCurrentPrice implements Source. Cache failures fall through to the
// underlying source; a cache write failure is logged and ignored.
func (c *CachedSource) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	key := priceKeyPrefix + symbol
	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if price, perr := decimal.NewFromString(cached); perr == nil {
			return price, nil
		}
	} else if err != redis.Nil {
		log.Printf("pricing: cache read failed for %s: %v", symbol, err)
	}
	price, err := c.source.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.client.Set(ctx, key, price.String(), c.ttl).Err(); err != nil {
		log.Printf("pricing: cache write failed for %s: %v", symbol, err)
	}
	return price, nil
}

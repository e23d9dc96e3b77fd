package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jbytow/coffeetica/services/review/internal/domain"
)

const keyPrefix = "coffee:details:"

// CoffeeCache implements repository.DetailsCache using Redis.
type CoffeeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCoffeeCache creates a Redis-backed coffee details cache.
func NewCoffeeCache(client *redis.Client, ttl time.Duration) *CoffeeCache {
	return &CoffeeCache{client: client, ttl: ttl}
}

func key(coffeeID int64) string {
	return keyPrefix + strconv.FormatInt(coffeeID, 10)
}

// Get returns cached details. A miss is (nil, false, nil).
func (c *CoffeeCache) Get(ctx context.Context, coffeeID int64) (*domain.CoffeeDetails, bool, error) {
	data, err := c.client.Get(ctx, key(coffeeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get coffee details: %w", err)
	}

	var d domain.CoffeeDetails
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, false, fmt.Errorf("unmarshal coffee details: %w", err)
	}
	return &d, true, nil
}

// Set stores details with the configured TTL.
func (c *CoffeeCache) Set(ctx context.Context, d *domain.CoffeeDetails) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal coffee details: %w", err)
	}
	if err := c.client.Set(ctx, key(d.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set coffee details: %w", err)
	}
	return nil
}

// Invalidate drops the cached details of a coffee.
func (c *CoffeeCache) Invalidate(ctx context.Context, coffeeID int64) error {
	if err := c.client.Del(ctx, key(coffeeID)).Err(); err != nil {
		return fmt.Errorf("redis del coffee details: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable. It backs the readiness check.
func (c *CoffeeCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

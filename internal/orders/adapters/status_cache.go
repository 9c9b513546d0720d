package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookstore/internal/orders/domain"
)

// RedisStatusCache stores terminal order statuses in Redis.
type RedisStatusCache struct {
	client      redis.Cmdable
	serviceName string
	ttl         time.Duration
}

// NewRedisStatusCache creates a cache over client. Entries expire after ttl;
// zero keeps them until deleted.
func NewRedisStatusCache(client redis.Cmdable, serviceName string, ttl time.Duration) *RedisStatusCache {
	return &RedisStatusCache{
		client:      client,
		serviceName: serviceName,
		ttl:         ttl,
	}
}

// NewRedisClient connects to addr and checks it with PING.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *RedisStatusCache) key(orderID string) string {
	return fmt.Sprintf("%s:order-status:%s", c.serviceName, orderID)
}

// Get returns the cached status, ok=false on a miss
func (c *RedisStatusCache) Get(ctx context.Context, orderID string) (domain.OrderStatus, bool, error) {
	value, err := c.client.Get(ctx, c.key(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	status, ok := domain.ParseOrderStatus(value)
	if !ok || !status.IsTerminal() {
		return "", false, nil
	}
	return status, true, nil
}

// Set caches a terminal status. Pending is never cached.
func (c *RedisStatusCache) Set(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if !status.IsTerminal() {
		return nil
	}
	return c.client.Set(ctx, c.key(orderID), string(status), c.ttl).Err()
}

// Delete evicts an order's status
func (c *RedisStatusCache) Delete(ctx context.Context, orderID string) error {
	return c.client.Del(ctx, c.key(orderID)).Err()
}

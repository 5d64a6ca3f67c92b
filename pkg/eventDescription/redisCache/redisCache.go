// Package redisCache memoizes event description fetches in redis.
package redisCache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gnosis/tradingdb/pkg/eventDescription"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "tradingdb:event_description:"

// RedisCache wraps a Fetcher. Cache failures are logged and never fail a fetch.
type RedisCache struct {
	rdb    *redis.Client
	next   eventDescription.Fetcher
	ttl    time.Duration
	logger *zap.Logger
}

// NewClient parses a redis url such as redis://localhost:6379/0.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func NewRedisCache(rdb *redis.Client, next eventDescription.Fetcher, ttl time.Duration, l *zap.Logger) *RedisCache {
	return &RedisCache{
		rdb:    rdb,
		next:   next,
		ttl:    ttl,
		logger: l,
	}
}

func cacheKey(ipfsHash string) string {
	return keyPrefix + ipfsHash
}

func (c *RedisCache) Fetch(ctx context.Context, ipfsHash string) (*eventDescription.Description, error) {
	cached, err := c.get(ctx, ipfsHash)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Sugar().Warnw("Failed to read event description from cache",
			zap.String("ipfsHash", ipfsHash),
			zap.Error(err),
		)
	}

	description, err := c.next.Fetch(ctx, ipfsHash)
	if err != nil {
		return nil, err
	}

	if err := c.set(ctx, ipfsHash, description); err != nil {
		c.logger.Sugar().Warnw("Failed to cache event description",
			zap.String("ipfsHash", ipfsHash),
			zap.Error(err),
		)
	}
	return description, nil
}

func (c *RedisCache) get(ctx context.Context, ipfsHash string) (*eventDescription.Description, error) {
	data, err := c.rdb.Get(ctx, cacheKey(ipfsHash)).Bytes()
	if err != nil {
		return nil, err
	}
	description := &eventDescription.Description{}
	if err := json.Unmarshal(data, description); err != nil {
		return nil, fmt.Errorf("redis: unmarshal event description %s: %w", ipfsHash, err)
	}
	return description, nil
}

func (c *RedisCache) set(ctx context.Context, ipfsHash string, description *eventDescription.Description) error {
	data, err := json.Marshal(description)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(ipfsHash), data, c.ttl).Err()
}

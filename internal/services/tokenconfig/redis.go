package tokenconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tokenconfig:"

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (models.TokenConfig, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var cfg models.TokenConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("decode token config %s: %w", key, err)
	}
	return cfg, true, nil
}

// Set stores cfg; a non-positive ttl keeps the entry until evicted.
func (c *RedisCache) Set(ctx context.Context, key string, cfg models.TokenConfig, ttl time.Duration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode token config %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

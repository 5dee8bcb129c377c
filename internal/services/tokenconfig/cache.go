package tokenconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const defaultCapacity = 1000

// Cache stores fetched token metadata keyed by endpoint or endpoint:user.
type Cache interface {
	Get(ctx context.Context, key string) (models.TokenConfig, bool, error)
	Set(ctx context.Context, key string, cfg models.TokenConfig, ttl time.Duration) error
}

// New builds the cache backend selected by cfg. redisClient is required for
// the redis backend and ignored otherwise.
func New(cfg models.CacheConfig, redisClient *redis.Client, ttl time.Duration) (Cache, error) {
	switch cfg.Backend {
	case models.CacheBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis client not set for redis backend")
		}
		fiberlog.Debug("TokenConfigCache: using redis backend")
		return NewRedisCache(redisClient), nil

	case models.CacheBackendMemory, "":
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = defaultCapacity
			fiberlog.Warnf("TokenConfigCache: invalid or missing capacity, using default %d", capacity)
		}
		fiberlog.Debugf("TokenConfigCache: using in-memory LRU backend with capacity=%d", capacity)
		return NewMemoryCache(capacity, ttl), nil

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s (supported: redis, memory)", cfg.Backend)
	}
}

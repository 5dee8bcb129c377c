package tokenconfig

import (
	"context"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a process-local LRU whose entries expire after a fixed TTL.
// The per-call ttl of Set is ignored in favor of the TTL given at construction.
type MemoryCache struct {
	lru *expirable.LRU[string, models.TokenConfig]
}

func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, models.TokenConfig](capacity, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (models.TokenConfig, bool, error) {
	cfg, ok := c.lru.Get(key)
	return cfg, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, cfg models.TokenConfig, _ time.Duration) error {
	c.lru.Add(key, cfg)
	return nil
}

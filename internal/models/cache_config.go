package models

// CacheBackendType represents the type of cache backend to use
type CacheBackendType string

const (
	CacheBackendRedis  CacheBackendType = "redis"
	CacheBackendMemory CacheBackendType = "memory"
)

// CacheConfig holds configuration for the token config cache
type CacheConfig struct {
	Backend  CacheBackendType `json:"backend,omitzero" yaml:"backend"`     // "redis" or "memory"
	RedisURL string           `json:"redis_url,omitzero" yaml:"redis_url"` // Required if backend is "redis"
	Capacity int              `json:"capacity,omitzero" yaml:"capacity"`   // LRU size for the memory backend
	// TTLSeconds bounds how long fetched token metadata is reused.
	TTLSeconds int `json:"ttl_seconds,omitzero" yaml:"ttl_seconds"`
}

package clientcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const defaultSize = 256

// Cache holds built clients keyed by a configuration hash. It is bounded so
// per-user credentials cannot grow it without limit; the factory runs at most
// once per key under concurrent load.
type Cache[T any] struct {
	lru     *lru.Cache[string, T]
	sfGroup singleflight.Group
}

// NewCache creates a cache holding at most size clients.
func NewCache[T any](size int) *Cache[T] {
	if size <= 0 {
		size = defaultSize
	}
	// lru.New only fails for non-positive sizes
	l, _ := lru.New[string, T](size)
	return &Cache[T]{lru: l}
}

// GetOrCreate returns the client cached under key, building it with factory on a miss.
func (c *Cache[T]) GetOrCreate(key string, factory func() (T, error)) (T, error) {
	if cached, ok := c.lru.Get(key); ok {
		return cached, nil
	}

	v, err, _ := c.sfGroup.Do(key, func() (any, error) {
		if cached, ok := c.lru.Get(key); ok {
			return cached, nil
		}

		client, err := factory()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, client)
		return client, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return v.(T), nil
}

func (c *Cache[T]) Delete(key string) {
	c.lru.Remove(key)
}

func (c *Cache[T]) Len() int {
	return c.lru.Len()
}

func (c *Cache[T]) Clear() {
	c.lru.Purge()
}

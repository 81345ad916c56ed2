// Package cache provides typed in-process caches for hot read paths.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache is a typed key/value cache with per-entry TTL.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration) bool
	Delete(key K)
	Close()
}

// Config sizes a ristretto-backed cache. MaxItems bounds the number of
// entries since every entry has cost 1.
type Config struct {
	MaxItems int64
}

type ristrettoCache[K comparable, V any] struct {
	client *ristretto.Cache
}

// NewRistretto returns a concurrent admission-controlled cache.
func NewRistretto[K comparable, V any](cfg Config) (Cache[K, V], error) {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 10_000
	}
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoCache[K, V]{client: client}, nil
}

func (c *ristrettoCache[K, V]) Get(key K) (V, bool) {
	var zero V
	raw, ok := c.client.Get(key)
	if !ok {
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

// Set is eventually visible: ristretto buffers writes.
func (c *ristrettoCache[K, V]) Set(key K, value V, ttl time.Duration) bool {
	return c.client.SetWithTTL(key, value, 1, ttl)
}

func (c *ristrettoCache[K, V]) Delete(key K) {
	c.client.Del(key)
}

func (c *ristrettoCache[K, V]) Close() {
	c.client.Close()
}

// Wait blocks until buffered writes are applied. Used by tests.
func Wait[K comparable, V any](c Cache[K, V]) {
	if rc, ok := c.(*ristrettoCache[K, V]); ok {
		rc.client.Wait()
	}
}

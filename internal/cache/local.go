package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
)

// LocalCache is an in-process cache for single-instance deployments and tests.
// bigcache has one eviction window, so the per-call ttl is ignored.
type LocalCache struct {
	cache *bigcache.BigCache
}

func NewLocalCache(ctx context.Context, ttl time.Duration) (*LocalCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 4096
	cfg.MaxEntrySize = 1024
	cfg.HardMaxCacheSize = 256
	cfg.Verbose = false
	c, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}
	return &LocalCache{cache: c}, nil
}

func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := c.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *LocalCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return c.cache.Set(key, value)
}

func (c *LocalCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		if err := c.cache.Delete(k); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

func (c *LocalCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	var keys []string
	it := c.cache.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			continue
		}
		if strings.HasPrefix(entry.Key(), prefix) {
			keys = append(keys, entry.Key())
		}
	}
	return c.Delete(ctx, keys...)
}

func (c *LocalCache) Close() error {
	return c.cache.Close()
}

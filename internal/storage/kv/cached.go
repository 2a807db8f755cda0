package kv

import (
	"context"
	"errors"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"

	"example.com/fittracker/internal/domain"
)

const megabyte = 1024 * 1024

// Cached fronts a Store with an in-process read-through cache. Writes go to the
// backing store first and then refresh the cache.
type Cached struct {
	inner     Store
	cache     *freecache.Cache
	expireSec int
}

// NewCached wraps inner with a cache of sizeMB megabytes whose entries expire
// after expireSec seconds (0 keeps them until evicted).
func NewCached(inner Store, sizeMB, expireSec int) *Cached {
	if sizeMB <= 0 {
		sizeMB = 8
	}
	return &Cached{
		inner:     inner,
		cache:     freecache.NewCache(sizeMB * megabyte),
		expireSec: expireSec,
	}
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	if value, err := c.cache.Get([]byte(key)); err == nil {
		return value, nil
	}

	value, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.store(key, value)
	return value, nil
}

func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	if err := c.inner.Set(ctx, key, value); err != nil {
		c.cache.Del([]byte(key))
		return err
	}
	c.store(key, value)
	return nil
}

// SetWithChanges forwards to the backing store when it records changes, and
// falls back to Set otherwise.
func (c *Cached) SetWithChanges(ctx context.Context, key string, value []byte, changes []domain.Change) error {
	writer, ok := c.inner.(ChangeWriter)
	if !ok {
		return c.Set(ctx, key, value)
	}
	if err := writer.SetWithChanges(ctx, key, value, changes); err != nil {
		c.cache.Del([]byte(key))
		return err
	}
	c.store(key, value)
	return nil
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	c.cache.Del([]byte(key))
	return c.inner.Delete(ctx, key)
}

func (c *Cached) store(key string, value []byte) {
	if err := c.cache.Set([]byte(key), value, c.expireSec); err != nil {
		if errors.Is(err, freecache.ErrLargeEntry) || errors.Is(err, freecache.ErrLargeKey) {
			log.Debugf("kv cache: skipping %s: %s", key, err)
			return
		}
		log.Warnf("kv cache: set %s: %s", key, err)
	}
}

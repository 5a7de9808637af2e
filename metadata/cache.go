package metadata

import (
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheCapacity is used when NewCache is given a capacity below 1.
const DefaultCacheCapacity = 16

// Cache keeps recently opened images keyed by canonical path, evicting the
// least recently used image when full. Concurrent opens of the same path
// share one construction.
type Cache struct {
	onEvict func(path string, img *Image)
	open    func(path string) (*Image, error)

	group  singleflight.Group
	images *lru.Cache[string, *Image]
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithEvictHook registers fn to run, outside the cache lock, for each image
// removed from the cache.
func WithEvictHook(fn func(path string, img *Image)) CacheOption {
	return func(c *Cache) { c.onEvict = fn }
}

// WithOpener replaces the function used to construct images. It defaults
// to Open.
func WithOpener(fn func(path string) (*Image, error)) CacheOption {
	return func(c *Cache) { c.open = fn }
}

// NewCache creates an empty cache holding at most capacity images.
func NewCache(capacity int, opts ...CacheOption) *Cache {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	c := &Cache{open: Open}
	for _, opt := range opts {
		opt(c)
	}
	// NewWithEvict only fails for a non-positive size.
	c.images, _ = lru.NewWithEvict(capacity, c.evicted)
	return c
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("metadata: failed to resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("metadata: failed to resolve %s: %w", path, err)
	}
	return resolved, nil
}

// Open returns the cached image for path, constructing it on a miss.
func (c *Cache) Open(path string) (*Image, error) {
	key, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	if img, ok := c.lookup(key); ok {
		return img, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if img, ok := c.lookup(key); ok {
			return img, nil
		}
		img, err := c.open(key)
		if err != nil {
			return nil, err
		}
		c.insert(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Image), nil
}

// Get returns the cached image for path without constructing one.
func (c *Cache) Get(path string) (*Image, bool) {
	key, err := canonicalPath(path)
	if err != nil {
		return nil, false
	}
	return c.lookup(key)
}

func (c *Cache) lookup(key string) (*Image, bool) {
	return c.images.Get(key)
}

func (c *Cache) insert(key string, img *Image) {
	c.images.Add(key, img)
}

// evicted runs after the cache has released its lock.
func (c *Cache) evicted(path string, img *Image) {
	Logger().Debug("image evicted from cache", zap.String("path", path))
	if c.onEvict != nil {
		c.onEvict(path, img)
	}
}

// Evict removes path from the cache and reports whether it was present.
func (c *Cache) Evict(path string) bool {
	key, err := canonicalPath(path)
	if err != nil {
		return false
	}
	return c.images.Remove(key)
}

// Len returns the number of cached images.
func (c *Cache) Len() int { return c.images.Len() }

// Purge empties the cache.
func (c *Cache) Purge() { c.images.Purge() }

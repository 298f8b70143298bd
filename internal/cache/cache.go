// Package cache provides a bounded, timestamped in-memory cache for resolved video data.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultExpiry is how long cached entries are valid.
	DefaultExpiry = 24 * time.Hour
	// DefaultSize is the maximum number of entries kept before the least recently used is evicted.
	DefaultSize = 256
	// AppName is used for the cache directory name.
	AppName = "vidres"
)

// Entry is a cached value together with the time it was stored.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Cache maps URLs to values. Each resolver owns its own instance.
type Cache[V any] struct {
	entries *lru.Cache[string, Entry[V]]
	expiry  time.Duration
	now     func() time.Time
}

// New creates a cache holding at most size entries, each valid for expiry.
func New[V any](size int, expiry time.Duration) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	entries, err := lru.New[string, Entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}

	return &Cache[V]{
		entries: entries,
		expiry:  expiry,
		now:     time.Now,
	}, nil
}

// GetCacheDir returns the platform-specific cache directory for the application.
func GetCacheDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}

	cacheDir := filepath.Join(userCacheDir, AppName)
	return cacheDir, nil
}

// cacheKey keeps the URL readable in debug output; only surrounding whitespace is dropped.
func cacheKey(url string) string {
	return strings.TrimSpace(url)
}

// Get returns the cached value for url. Expired entries are removed and reported as misses.
func (c *Cache[V]) Get(url string) (V, bool) {
	entry, ok := c.Lookup(url)
	return entry.Value, ok
}

// Lookup returns the full entry, including when it was stored.
func (c *Cache[V]) Lookup(url string) (Entry[V], bool) {
	key := cacheKey(url)

	entry, ok := c.entries.Get(key)
	if !ok {
		return Entry[V]{}, false
	}

	if c.now().Sub(entry.StoredAt) > c.expiry {
		c.entries.Remove(key)
		log.Debug().Str("url", url).Msg("Cache entry expired")
		return Entry[V]{}, false
	}

	return entry, true
}

// Set stores value for url, replacing any previous entry.
func (c *Cache[V]) Set(url string, value V) {
	c.entries.Add(cacheKey(url), Entry[V]{Value: value, StoredAt: c.now()})
}

// Delete removes url from the cache.
func (c *Cache[V]) Delete(url string) {
	c.entries.Remove(cacheKey(url))
}

// Len returns the number of entries, including expired ones not yet cleaned.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

// CleanExpired removes entries older than the expiry duration and returns how many were removed.
func (c *Cache[V]) CleanExpired() int {
	now := c.now()
	removed := 0
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(entry.StoredAt) > c.expiry {
			c.entries.Remove(key)
			removed++
		}
	}

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Cache cleanup completed")
	}

	return removed
}

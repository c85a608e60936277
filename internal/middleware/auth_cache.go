package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	ownerCacheTTL      = 5 * time.Minute
	negativeCacheTTL   = 30 * time.Second
	maxCacheEntries    = 10000
	cacheCleanupPeriod = time.Minute
)

var errCachedNotFound = errors.New("owner not found (cached)")

type cachedOwner struct {
	ownerID   string
	negative  bool
	fetchedAt time.Time
}

func (e cachedOwner) expired(now time.Time) bool {
	ttl := ownerCacheTTL
	if e.negative {
		ttl = negativeCacheTTL
	}
	return now.Sub(e.fetchedAt) >= ttl
}

// hashKey keeps raw API keys out of the cache.
func hashKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// CachedOwnerLookup wraps an OwnerLookup with a bounded in-memory cache.
// Concurrent misses for the same key share one lookup; failures are cached
// briefly so a bad key cannot hammer the database.
type CachedOwnerLookup struct {
	inner OwnerLookup
	mu    sync.RWMutex
	cache map[string]cachedOwner
	group singleflight.Group
}

// NewCachedOwnerLookup creates the cache. ctx bounds the eviction goroutine.
func NewCachedOwnerLookup(ctx context.Context, inner OwnerLookup) *CachedOwnerLookup {
	c := &CachedOwnerLookup{
		inner: inner,
		cache: make(map[string]cachedOwner),
	}
	go c.evictLoop(ctx)
	return c
}

func (c *CachedOwnerLookup) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			c.evictExpired(now)
			c.mu.Unlock()
		}
	}
}

// evictExpired drops stale entries. Caller must hold c.mu.
func (c *CachedOwnerLookup) evictExpired(now time.Time) {
	for k, v := range c.cache {
		if v.expired(now) {
			delete(c.cache, k)
		}
	}
}

func (c *CachedOwnerLookup) store(hk string, entry cachedOwner) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= maxCacheEntries {
		c.evictExpired(entry.fetchedAt)
		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}

	c.cache[hk] = entry
}

// GetOwnerByAPIKey returns a cached owner ID or delegates to the inner lookup.
func (c *CachedOwnerLookup) GetOwnerByAPIKey(ctx context.Context, apiKey string) (string, error) {
	hk := hashKey(apiKey)

	c.mu.RLock()
	entry, ok := c.cache[hk]
	c.mu.RUnlock()

	if ok && !entry.expired(time.Now()) {
		if entry.negative {
			return "", errCachedNotFound
		}
		return entry.ownerID, nil
	}

	v, err, _ := c.group.Do(hk, func() (any, error) {
		ownerID, err := c.inner.GetOwnerByAPIKey(ctx, apiKey)
		if err != nil {
			c.store(hk, cachedOwner{negative: true, fetchedAt: time.Now()})
			return "", err
		}

		c.store(hk, cachedOwner{ownerID: ownerID, fetchedAt: time.Now()})
		return ownerID, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil //nolint:forcetypeassert // the closure only returns strings
}

package crypto

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cachedKey struct {
	key       []byte
	fetchedAt time.Time
}

// keyCache memoizes owner keys and collapses concurrent loads of the same
// owner into one call. A zero ttl keeps entries forever.
type keyCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	keys  map[string]cachedKey
	group singleflight.Group
}

func newKeyCache(ttl time.Duration) *keyCache {
	return &keyCache{ttl: ttl, keys: make(map[string]cachedKey)}
}

func (c *keyCache) lookup(ownerID string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.keys[ownerID]
	c.mu.RUnlock()

	if !ok || (c.ttl > 0 && time.Since(entry.fetchedAt) >= c.ttl) {
		return nil, false
	}

	return entry.key, true
}

func (c *keyCache) get(ctx context.Context, ownerID string, load func(context.Context, string) ([]byte, error)) ([]byte, error) {
	if key, ok := c.lookup(ownerID); ok {
		return clone(key), nil
	}

	val, err, _ := c.group.Do(ownerID, func() (any, error) {
		if key, ok := c.lookup(ownerID); ok {
			return key, nil
		}

		key, err := load(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		if len(key) != keySize {
			return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", keySize, len(key))
		}

		c.mu.Lock()
		c.keys[ownerID] = cachedKey{key: clone(key), fetchedAt: time.Now()}
		c.mu.Unlock()

		return key, nil
	})
	if err != nil {
		return nil, err
	}

	key, ok := val.([]byte)
	if !ok {
		return nil, fmt.Errorf("crypto: unexpected singleflight result type %T", val)
	}

	return clone(key), nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

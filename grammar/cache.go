package grammar

import (
	"crypto/sha256"
	"sync"

	"github.com/golang/glog"
	"github.com/golang/groupcache/singleflight"
)

type CacheKey [sha256.Size]byte

// KeyOf identifies a schema by the digest of its source.
func KeyOf(src []byte) CacheKey {
	return sha256.Sum256(src)
}

// Cache shares compiled grammars between callers that code with the same
// schema. A grammar is compiled once per key even when callers race.
type Cache struct {
	mu      sync.RWMutex
	entries map[CacheKey]*Grammar
	flight  singleflight.Group
}

func NewCache() *Cache {
	return &Cache{
		entries: map[CacheKey]*Grammar{},
	}
}

// Get returns the grammar cached under key, calling build when there is none.
// A failed build is not cached.
func (c *Cache) Get(key CacheKey, build func() (*Grammar, error)) (*Grammar, error) {
	if g, ok := c.lookup(key); ok {
		return g, nil
	}
	v, err := c.flight.Do(string(key[:]), func() (interface{}, error) {
		// A flight that ended just before this one may have filled the entry.
		if g, ok := c.lookup(key); ok {
			return g, nil
		}
		g, err := build()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = g
		c.mu.Unlock()
		glog.V(1).Infof("cached grammar %x", key[:8])
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Grammar), nil
}

func (c *Cache) lookup(key CacheKey) (*Grammar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.entries[key]
	return g, ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

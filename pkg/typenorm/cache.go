package typenorm

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 64 << 10

type cacheKey struct {
	module     string
	descriptor uint64
}

// Cache is a read-through normalization cache keyed by (module,
// descriptor identity). Normalization is pure, so concurrent duplicate
// computation for the same key is wasted work rather than a hazard:
// whichever result lands first wins and all results are identical.
type Cache struct {
	lru *lru.Cache[cacheKey, *Type]
}

// NewCache returns a cache bounded to size entries. A non-positive
// size falls back to the default.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[cacheKey, *Type](size)
	if err != nil {
		// lru.New fails only on a non-positive size.
		panic(err)
	}
	return &Cache{lru: c}
}

// Normalize resolves the descriptor through the cache. The descriptor
// identity token is assigned by the reader and is unique per module.
func (c *Cache) Normalize(module string, descriptor uint64, rt RawType) *Type {
	k := cacheKey{module: module, descriptor: descriptor}
	if t, ok := c.lru.Get(k); ok {
		return t
	}
	t := Normalize(rt)
	c.lru.ContainsOrAdd(k, t)
	return t
}

// Len reports the number of cached canonical types.
func (c *Cache) Len() int { return c.lru.Len() }

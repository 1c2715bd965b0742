// Package rescache holds resolved debrid links between stream requests so a
// player retry or seek does not pay a second provider round-trip.
package rescache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"onyxstream/models"
)

// Cache is a capacity-bounded LRU of magnet resolutions with a hard TTL.
// Provider download URLs are credentialed and short-lived, so an entry past
// TTL is absent no matter how recently it was read. Safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[string, models.MagnetResolution]
}

// New returns a cache evicting least-recently-used entries past capacity and
// expiring every entry ttl after insertion.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 500
	}
	return &Cache{
		lru: expirable.NewLRU[string, models.MagnetResolution](capacity, nil, ttl),
	}
}

// Get returns the resolution for key if present and unexpired.
func (c *Cache) Get(key string) (models.MagnetResolution, bool) {
	return c.lru.Get(key)
}

// Put stores a resolution, overwriting any previous entry for the key.
func (c *Cache) Put(key string, res models.MagnetResolution) {
	c.lru.Add(key, res)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Package tmcache is the per-language translation memory. Simple buckets
// deduplicate short recurring strings by exact text; structural buckets
// store the finished translations of whole structural items keyed by
// content hash. The cache is advisory: losing it costs money, not
// correctness.
package tmcache

import (
	"sync"

	"github.com/contentops/cms-translator/internal/metrics"
)

const (
	BucketHeadings = "headings"
	BucketAltTags  = "altTags"
)

// Cache holds one target language's buckets. All writes are
// first-write-wins, so concurrent duplicate computation is harmless.
type Cache struct {
	language string

	mu         sync.RWMutex
	simple     map[string]map[string]string
	structural map[string]map[string]map[string]string
	dirty      bool
}

func newCache(language string) *Cache {
	return &Cache{
		language:   language,
		simple:     make(map[string]map[string]string),
		structural: make(map[string]map[string]map[string]string),
	}
}

func (c *Cache) Language() string { return c.language }

// Lookup resolves a simple bucket entry.
func (c *Cache) Lookup(bucket, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.simple[bucket][key]
	if ok {
		metrics.CacheHits.WithLabelValues(bucket).Inc()
	} else {
		metrics.CacheMisses.WithLabelValues(bucket).Inc()
	}
	return v, ok
}

// Store writes a simple bucket entry unless the key is already present.
// Reports whether the write took effect.
func (c *Cache) Store(bucket, key, value string) bool {
	if key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.simple[bucket]
	if !ok {
		b = make(map[string]string)
		c.simple[bucket] = b
	}
	if _, exists := b[key]; exists {
		return false
	}
	b[key] = value
	c.dirty = true
	return true
}

// LookupItem resolves a structural bucket entry. The returned map is a copy.
func (c *Cache) LookupItem(bucket, key string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.structural[bucket][key]
	if !ok {
		metrics.CacheMisses.WithLabelValues(bucket).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(bucket).Inc()
	out := make(map[string]string, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	return out, true
}

// StoreItem writes a structural bucket entry unless the key is already
// present. Reports whether the write took effect.
func (c *Cache) StoreItem(bucket, key string, fields map[string]string) bool {
	if key == "" || len(fields) == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.structural[bucket]
	if !ok {
		b = make(map[string]map[string]string)
		c.structural[bucket] = b
	}
	if _, exists := b[key]; exists {
		return false
	}
	entry := make(map[string]string, len(fields))
	for k, v := range fields {
		entry[k] = v
	}
	b[key] = entry
	c.dirty = true
	return true
}

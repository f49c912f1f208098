package tmcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/contentops/cms-translator/pkg/log"
)

// Set owns one Cache per target language and the single cache file they
// all persist into. Load once at startup, Flush at shutdown and on the
// periodic tick.
type Set struct {
	path string

	mu     sync.Mutex
	caches map[string]*Cache
}

func NewSet(path string) *Set {
	return &Set{path: path, caches: make(map[string]*Cache)}
}

// For returns the cache for a target language, creating it empty on first use.
func (s *Set) For(language string) *Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[language]
	if !ok {
		c = newCache(language)
		s.caches[language] = c
	}
	return c
}

// fileShape is language -> bucket -> raw bucket payload. Simple buckets
// decode as string->string, structural buckets as string->object.
type fileShape map[string]map[string]json.RawMessage

// Load reads the cache file. A missing file starts empty; a corrupt file is
// discarded with a warning rather than failing startup.
func (s *Set) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("translation cache file %s not found, starting empty", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache file: %w", err)
	}

	var shape fileShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		log.Warn("translation cache file %s is corrupt, starting empty: %v", s.path, err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for language, buckets := range shape {
		c := newCache(language)
		for bucket, payload := range buckets {
			if bucket == BucketHeadings || bucket == BucketAltTags {
				var entries map[string]string
				if err := json.Unmarshal(payload, &entries); err != nil {
					log.Warn("cache bucket %s/%s unreadable, skipping: %v", language, bucket, err)
					continue
				}
				c.simple[bucket] = entries
				continue
			}
			var entries map[string]map[string]string
			if err := json.Unmarshal(payload, &entries); err != nil {
				log.Warn("cache bucket %s/%s unreadable, skipping: %v", language, bucket, err)
				continue
			}
			c.structural[bucket] = entries
		}
		s.caches[language] = c
	}
	log.Info("loaded translation cache for %d languages from %s", len(s.caches), s.path)
	return nil
}

// Flush persists every dirty cache. The file is replaced atomically so a
// crash mid-write never corrupts the previous snapshot.
func (s *Set) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := false
	for _, c := range s.caches {
		c.mu.RLock()
		if c.dirty {
			dirty = true
		}
		c.mu.RUnlock()
	}
	if !dirty {
		return nil
	}

	shape := make(fileShape, len(s.caches))
	for language, c := range s.caches {
		c.mu.RLock()
		buckets := make(map[string]json.RawMessage, len(c.simple)+len(c.structural))
		for bucket, entries := range c.simple {
			raw, err := json.Marshal(entries)
			if err != nil {
				c.mu.RUnlock()
				return fmt.Errorf("serialize cache bucket %s/%s: %w", language, bucket, err)
			}
			buckets[bucket] = raw
		}
		for bucket, entries := range c.structural {
			raw, err := json.Marshal(entries)
			if err != nil {
				c.mu.RUnlock()
				return fmt.Errorf("serialize cache bucket %s/%s: %w", language, bucket, err)
			}
			buckets[bucket] = raw
		}
		c.mu.RUnlock()
		shape[language] = buckets
	}

	raw, err := json.MarshalIndent(shape, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}

	for _, c := range s.caches {
		c.mu.Lock()
		c.dirty = false
		c.mu.Unlock()
	}
	log.Info("flushed translation cache to %s", s.path)
	return nil
}

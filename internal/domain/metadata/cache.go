package metadata

import (
	"sync"
)

// CacheEntry pairs extracted metadata with the fingerprint of the file it
// came from. A nil fingerprint marks a legacy entry that is treated as
// always valid until explicitly invalidated.
type CacheEntry struct {
	Metadata    TrackMetadata `json:"metadata"`
	Fingerprint *Fingerprint  `json:"fileFingerprint"`
}

// Store persists cache entries between sessions.
type Store interface {
	LoadAll() (map[string]CacheEntry, error)
	SaveAll(entries map[string]CacheEntry) error
}

// Cache is the in-memory metadata cache, keyed by absolute file path.
// It is read and written concurrently by extraction workers; the load
// queue's per-track deduplication keeps writers to a key from racing.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]CacheEntry)}
}

// Lookup returns the cached metadata for path when the entry is still valid
// against the given current fingerprint. A nil stored fingerprint always
// validates.
func (c *Cache) Lookup(path string, current *Fingerprint) (TrackMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[path]
	if !ok {
		return TrackMetadata{}, false
	}
	if entry.Fingerprint == nil {
		return entry.Metadata, true
	}
	if current == nil {
		return TrackMetadata{}, false
	}
	if entry.Fingerprint.SizeBytes != current.SizeBytes || entry.Fingerprint.MTimeMs != current.MTimeMs {
		return TrackMetadata{}, false
	}
	return entry.Metadata, true
}

// Put stores an extraction result.
func (c *Cache) Put(path string, md TrackMetadata, fp *Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = CacheEntry{Metadata: md, Fingerprint: fp}
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LoadFrom replaces the cache content with the store's persisted entries.
func (c *Cache) LoadFrom(s Store) error {
	entries, err := s.LoadAll()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = make(map[string]CacheEntry)
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// FlushTo persists a snapshot of the cache to the store.
func (c *Cache) FlushTo(s Store) error {
	c.mu.RLock()
	snapshot := make(map[string]CacheEntry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()
	return s.SaveAll(snapshot)
}

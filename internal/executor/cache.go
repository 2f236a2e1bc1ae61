package executor

import (
	"slices"
	"sync"

	"github.com/specialistvlad/burstbuild/internal/filetree"
)

// CacheEntry is the last successful output of one stage together with the
// key it was computed for.
type CacheEntry struct {
	Stage             string
	InputFingerprints []filetree.Fingerprint
	ConfigFingerprint filetree.Fingerprint
	Output            *filetree.Tree
	Warnings          []error
}

func (c *CacheEntry) matches(inputs []filetree.Fingerprint, config filetree.Fingerprint) bool {
	return c.ConfigFingerprint == config && slices.Equal(c.InputFingerprints, inputs)
}

// cache holds one entry per stage name. Storing an entry replaces the
// previous one for that stage.
type cache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

func newCache() *cache {
	return &cache{entries: make(map[string]*CacheEntry)}
}

func (c *cache) get(name string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

func (c *cache) put(e *CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Stage] = e
}

func (c *cache) delete(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range names {
		delete(c.entries, n)
	}
}

func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

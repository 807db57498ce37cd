package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/RinkuLib/RinkuLib/template"
	"github.com/RinkuLib/RinkuLib/utils"
)

// BlueprintCache keeps compiled blueprints behind an LRU keyed by the
// FNV fingerprint of (template, prefix). Blueprints are immutable, so a hit
// can be shared by any number of renderers.
type BlueprintCache struct {
	cache *lru.Cache[uint64, *template.Blueprint]
	mu    sync.RWMutex
}

func NewBlueprintCache(size int) *BlueprintCache {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[uint64, *template.Blueprint](size)
	return &BlueprintCache{cache: c}
}

// Key fingerprints a template for cache lookup.
func Key(src string, prefix byte) uint64 {
	return utils.Mix64(utils.FingerprintString(src), uint64(prefix))
}

func (c *BlueprintCache) Get(key uint64) (*template.Blueprint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Get(key)
}

func (c *BlueprintCache) Set(key uint64, bp *template.Blueprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, bp)
}

// GetOrCompile returns the cached blueprint for src, compiling it at most
// once per residency.
func (c *BlueprintCache) GetOrCompile(src string, prefix byte, opts ...template.CompileOption) (*template.Blueprint, error) {
	key := Key(src, prefix)
	if prefix != 0 {
		opts = append(opts, template.WithPrefix(prefix))
	}

	// Fast path: read lock only.
	c.mu.RLock()
	if bp, ok := c.cache.Get(key); ok {
		c.mu.RUnlock()
		return bp, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the write lock.
	if bp, ok := c.cache.Get(key); ok {
		return bp, nil
	}

	bp, err := template.Compile(src, opts...)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, bp)
	return bp, nil
}

// Purge drops every cached blueprint.
func (c *BlueprintCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Len reports the number of resident blueprints.
func (c *BlueprintCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

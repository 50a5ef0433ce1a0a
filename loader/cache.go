package loader

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/ili-run/cilrun/assembly"
)

// cacheEntry is one name's cached resolution: the file path Filesystem's
// search found it at, so a repeat run skips the search-path walk.
type cacheEntry struct {
	Path string `cbor:"path"`
}

// Cache wraps a filesystem search with a CBOR-encoded sidecar file
// remembering which path satisfied each module name, grounded on
// vm/dist/wire.go's CBOR wire codec — adapted here from a distributed-build
// artifact cache to a same-process assembly-resolution cache.
type Cache struct {
	cachePath string
	cfg       *Config
	entries   map[string]cacheEntry
}

// OpenCache loads cachePath's sidecar cache, if it exists, to front cfg's
// search paths. A missing or corrupt cache file starts empty rather than
// failing — the cache is an optimization, never a source of truth.
func OpenCache(cachePath string, cfg *Config) *Cache {
	c := &Cache{cachePath: cachePath, cfg: cfg, entries: map[string]cacheEntry{}}
	data, err := os.ReadFile(cachePath)
	if err == nil {
		_ = cbor.Unmarshal(data, &c.entries)
	}
	return c
}

// Load implements the Loader shape: a cached path is tried first; on miss
// or a stale entry it falls through to a fresh filesystem search and
// records the result.
func (c *Cache) Load(name string) (*assembly.Assembly, error) {
	if entry, ok := c.entries[name]; ok {
		if data, err := os.ReadFile(entry.Path); err == nil {
			if a, err := assembly.Parse(data); err == nil {
				return a, nil
			}
		}
		delete(c.entries, name)
	}

	path, ok := resolvePath(c.cfg, name)
	if !ok {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: cache: read %s: %w", path, err)
	}
	a, err := assembly.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loader: cache: parse %s: %w", path, err)
	}
	if err := c.remember(name, path); err != nil {
		return nil, err
	}
	return a, nil
}

// remember records path as the resolution for name and persists the cache
// file.
func (c *Cache) remember(name, path string) error {
	c.entries[name] = cacheEntry{Path: path}
	data, err := cbor.Marshal(c.entries)
	if err != nil {
		return err
	}
	return os.WriteFile(c.cachePath, data, 0o644)
}

// Package build implements the incremental build pipeline: content
// fingerprinting, the persisted fingerprint cache, and the dispatch loop
// that renders, copies, or protects every discovered source file.
package build

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Y006/phd-site/internal/errors"
)

// Fingerprint returns the hex SHA-256 digest of b. It is deterministic
// across runs and used only for change detection, not as a security
// property.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile reads path and fingerprints its contents.
func FingerprintFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewIOError(path, "reading file for fingerprint", err)
	}
	return Fingerprint(data), nil
}

// Cache is the persisted mapping from source path to the content digest
// recorded on its last successful processing. It is loaded once per run,
// consulted per file, and rewritten once at the end. Entries for removed
// sources are never deleted; lookups are keyed by still-existing paths
// only.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// LoadCache reads the persisted cache from path. A missing file yields an
// empty cache (first run). Malformed lines are skipped, not fatal: a
// corrupted cache self-heals by rebuilding the affected files.
func LoadCache(path string) (*Cache, error) {
	cache := NewCache()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache, nil
		}
		return nil, errors.NewIOError(path, "opening build cache", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		// The digest follows the last colon; paths may contain colons.
		idx := strings.LastIndex(line, ":")
		if idx <= 0 || idx == len(line)-1 {
			continue
		}
		cache.entries[line[:idx]] = line[idx+1:]
	}
	if err := sc.Err(); err != nil {
		return nil, errors.NewIOError(path, "reading build cache", err)
	}

	return cache, nil
}

// Digest returns the stored digest for a source path.
func (c *Cache) Digest(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[path]
	return d, ok
}

// NeedsRebuild reports whether a path must be processed: true when the
// path is absent or its stored digest differs from digest. This check is
// content-only; the dispatcher layers an output-exists check on top to
// guard against a manually cleared output tree.
func (c *Cache) NeedsRebuild(path, digest string) bool {
	stored, ok := c.Digest(path)
	return !ok || stored != digest
}

// Update records the digest for a successfully processed path.
func (c *Cache) Update(path, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = digest
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save serializes the full mapping to path in one shot, overwriting the
// previous file. Entries are written in sorted order so the file is
// stable across runs with identical content.
func (c *Cache) Save(path string) error {
	c.mu.RLock()
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s:%s\n", p, c.entries[p])
	}
	c.mu.RUnlock()

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.NewIOError(path, "writing build cache", err)
	}
	return nil
}

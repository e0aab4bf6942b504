// Package keychain reads provider secrets from the OS credential store,
// fronted by an expiring on-disk cache so poll cycles don't hammer the store.
package keychain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long a store result (present or confirmed absent)
	// is served from cache before the store is queried again.
	DefaultTTL = 30 * time.Minute
	// lookupTimeout bounds a single underlying store query.
	lookupTimeout = 5 * time.Second
)

// LookupFunc queries the underlying OS credential store by service name.
type LookupFunc func(ctx context.Context, service string) (string, error)

// entry is one cached store result. A nil Value records a failed or empty
// lookup. Confirmed absent is cached just like a hit, so a provider that has
// never logged in doesn't trigger a store query every cycle.
type entry struct {
	Value     *string   `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache is the credential store adapter. The cache file lives in the OS temp
// directory, namespaced by user id to avoid cross-user collisions. Reads are
// idempotent and writes are last-write-wins per key, so overlapping poll
// cycles are safe.
type Cache struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	lookup LookupFunc
}

// New creates a Cache backed by the OS keychain and the default cache file.
func New() *Cache {
	return &Cache{
		path: DefaultCachePath(),
		now:  time.Now,
		lookup: func(ctx context.Context, service string) (string, error) {
			return ReadGenericPassword(ctx, service, "")
		},
	}
}

// NewWithBackend creates a Cache with an explicit cache file, clock, and
// lookup function. Tests use this to run against fakes.
func NewWithBackend(path string, now func() time.Time, lookup LookupFunc) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{path: path, now: now, lookup: lookup}
}

// DefaultCachePath returns the per-user cache file path.
func DefaultCachePath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("quotadash-keychain-%d.json", os.Getuid()))
}

// ReadSecret returns the secret stored under name. A cached result younger
// than ttl is returned without querying the store; ttl of zero bypasses the
// cache entirely. The second return value reports whether a secret exists;
// absence covers both "never stored" and "lookup failed".
func (c *Cache) ReadSecret(ctx context.Context, name string, ttl time.Duration) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()

	if ttl > 0 {
		if e, ok := entries[name]; ok && c.now().Sub(e.FetchedAt) < ttl {
			if e.Value == nil {
				return "", false
			}
			return *e.Value, true
		}
	}

	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	var e entry
	e.FetchedAt = c.now()
	secret, err := c.lookup(lctx, name)
	if err == nil && secret != "" {
		e.Value = &secret
	}

	// Failures are cached too; a flaky store shouldn't be re-queried
	// until the TTL window passes.
	entries[name] = e
	c.store(entries)

	if e.Value == nil {
		return "", false
	}
	return *e.Value, true
}

// Clear drops the cache entry for name, forcing the next read to query the
// store regardless of TTL.
func (c *Cache) Clear(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load()
	if _, ok := entries[name]; !ok {
		return
	}
	delete(entries, name)
	c.store(entries)
}

// ClearAll removes the cache file.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = os.Remove(c.path)
}

// load reads the cache file. Missing or malformed files are treated as empty;
// the cache is re-derivable from the store at any time.
func (c *Cache) load() map[string]entry {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return make(map[string]entry)
	}
	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
		return make(map[string]entry)
	}
	return entries
}

// store fully rewrites the cache file via a uniquely named temp file and a
// rename, so concurrent writers (separate Cache instances share the default
// path) can interleave without ever leaving a torn file. Owner-only
// permissions: the file holds secret material.
func (c *Cache) store(entries map[string]entry) {
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*")
	if err != nil {
		return
	}
	if err := tmp.Chmod(0o600); err == nil {
		_, err = tmp.Write(data)
	}
	if closeErr := tmp.Close(); err != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		_ = os.Remove(tmp.Name())
	}
}

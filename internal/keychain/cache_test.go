package keychain

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	calls   int
	secret  string
	fail    bool
	missing bool
}

func (f *fakeStore) lookup(ctx context.Context, service string) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("store unavailable")
	}
	if f.missing {
		return "", nil
	}
	return f.secret, nil
}

func newTestCache(t *testing.T, store *fakeStore, now *time.Time) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.json")
	return NewWithBackend(path, func() time.Time { return *now }, store.lookup)
}

func TestReadSecret_CachesWithinTTL(t *testing.T) {
	store := &fakeStore{secret: "s3cret"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, store, &now)

	got, ok := c.ReadSecret(context.Background(), "svc", 30*time.Minute)
	if !ok || got != "s3cret" {
		t.Fatalf("first read = (%q, %v), want (%q, true)", got, ok, "s3cret")
	}

	now = now.Add(29 * time.Minute)
	got, ok = c.ReadSecret(context.Background(), "svc", 30*time.Minute)
	if !ok || got != "s3cret" {
		t.Fatalf("cached read = (%q, %v), want (%q, true)", got, ok, "s3cret")
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1 (second read must hit cache)", store.calls)
	}
}

func TestReadSecret_RequeriesAfterTTL(t *testing.T) {
	store := &fakeStore{secret: "s3cret"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, store, &now)

	c.ReadSecret(context.Background(), "svc", 30*time.Minute)

	now = now.Add(30 * time.Minute)
	c.ReadSecret(context.Background(), "svc", 30*time.Minute)

	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2 (TTL elapsed, must re-query)", store.calls)
	}
}

func TestReadSecret_ZeroTTLBypassesCache(t *testing.T) {
	store := &fakeStore{secret: "s3cret"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, store, &now)

	c.ReadSecret(context.Background(), "svc", 30*time.Minute)
	c.ReadSecret(context.Background(), "svc", 0)

	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2 (ttl=0 must bypass cache)", store.calls)
	}
}

func TestReadSecret_CachesConfirmedAbsent(t *testing.T) {
	store := &fakeStore{missing: true}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, store, &now)

	if _, ok := c.ReadSecret(context.Background(), "svc", 30*time.Minute); ok {
		t.Fatal("read of missing secret reported ok")
	}
	if _, ok := c.ReadSecret(context.Background(), "svc", 30*time.Minute); ok {
		t.Fatal("cached read of missing secret reported ok")
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1 (absence must be cached)", store.calls)
	}

	// A login that happens after the TTL window is picked up.
	store.missing = false
	store.secret = "fresh"
	now = now.Add(31 * time.Minute)
	got, ok := c.ReadSecret(context.Background(), "svc", 30*time.Minute)
	if !ok || got != "fresh" {
		t.Errorf("post-login read = (%q, %v), want (%q, true)", got, ok, "fresh")
	}
}

func TestReadSecret_CachesFailures(t *testing.T) {
	store := &fakeStore{fail: true}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, store, &now)

	c.ReadSecret(context.Background(), "svc", 30*time.Minute)
	c.ReadSecret(context.Background(), "svc", 30*time.Minute)

	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1 (failed lookups must be cached)", store.calls)
	}
}

func TestClear_ForcesRequery(t *testing.T) {
	store := &fakeStore{secret: "s3cret"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, store, &now)

	c.ReadSecret(context.Background(), "svc", 30*time.Minute)
	c.Clear("svc")
	c.ReadSecret(context.Background(), "svc", 30*time.Minute)

	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2 after Clear", store.calls)
	}
}

// Separate Cache instances share the default path in production (each
// provider constructs its own), so interleaved rewrites must never leave a
// torn file behind.
func TestCache_ConcurrentWritersSharePathWithoutCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	a := NewWithBackend(path, clock, (&fakeStore{secret: "secret-a"}).lookup)
	b := NewWithBackend(path, clock, (&fakeStore{secret: "secret-b"}).lookup)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.ReadSecret(context.Background(), "svc-a", 0)
		}()
		go func() {
			defer wg.Done()
			b.ReadSecret(context.Background(), "svc-b", 0)
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("cache file is torn: %v\n%s", err, data)
	}
	if _, okA := entries["svc-a"]; !okA {
		if _, okB := entries["svc-b"]; !okB {
			t.Fatalf("cache file carries neither writer's entry: %s", data)
		}
	}
}

func TestCache_SurvivesMalformedFile(t *testing.T) {
	store := &fakeStore{secret: "s3cret"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "cache.json")
	writeFile(t, path, "{not json")

	c := NewWithBackend(path, func() time.Time { return now }, store.lookup)
	got, ok := c.ReadSecret(context.Background(), "svc", 30*time.Minute)
	if !ok || got != "s3cret" {
		t.Errorf("read with malformed cache = (%q, %v), want (%q, true)", got, ok, "s3cret")
	}
}

package memorycache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// Keys follow the permission|user|resource form CachedBackend derives.
const (
	viewKey   = "shrubberies.view_shrubbery|2|100"
	updateKey = "shrubberies.update_shrubbery|2|100"
	globalKey = "shrubberies.update_shrubbery|1|*"
)

func newTestCache(t *testing.T, maxEntries int) *Cache {
	t.Helper()
	c, err := New(&Config{MaxEntries: maxEntries, DefaultTTL: time.Minute})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	if err := c.Set(ctx, viewKey, true, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set(ctx, updateKey, false, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok := c.Get(ctx, viewKey)
	if !ok || got != true {
		t.Errorf("Get(%q) = %v, %v, want true, true", viewKey, got, ok)
	}
	got, ok = c.Get(ctx, updateKey)
	if !ok || got != false {
		t.Errorf("Get(%q) = %v, %v, want false, true", updateKey, got, ok)
	}
	if _, ok := c.Get(ctx, globalKey); ok {
		t.Errorf("Get(%q) = hit, want miss for an unset key", globalKey)
	}
}

func TestCache_UpdateExistingVerdict(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	c.Set(ctx, viewKey, true, time.Minute)
	c.Set(ctx, viewKey, false, time.Minute)

	got, ok := c.Get(ctx, viewKey)
	if !ok || got != false {
		t.Errorf("Get() after update = %v, %v, want false, true", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after updating in place", c.Len())
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	// An already-elapsed TTL makes the entry expired on arrival.
	c.Set(ctx, viewKey, true, -time.Second)
	if _, ok := c.Get(ctx, viewKey); ok {
		t.Error("Get() = hit for an expired verdict")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after the expired entry is dropped", c.Len())
	}
}

func TestCache_ZeroTTLUsesDefault(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	c.Set(ctx, viewKey, true, 0)
	if _, ok := c.Get(ctx, viewKey); !ok {
		t.Error("Get() = miss, want the default TTL to keep the verdict alive")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 2)

	c.Set(ctx, viewKey, true, time.Minute)
	c.Set(ctx, updateKey, false, time.Minute)

	// Touch the first verdict so the second becomes the eviction victim.
	c.Get(ctx, viewKey)
	c.Set(ctx, globalKey, true, time.Minute)

	if _, ok := c.Get(ctx, viewKey); !ok {
		t.Error("recently used verdict was evicted")
	}
	if _, ok := c.Get(ctx, updateKey); ok {
		t.Error("least recently used verdict survived eviction")
	}
	if _, ok := c.Get(ctx, globalKey); !ok {
		t.Error("newly added verdict missing")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want the entry bound 2", c.Len())
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 100)

	c.Set(ctx, viewKey, true, time.Minute)
	c.Set(ctx, updateKey, false, time.Minute)

	if err := c.Delete(ctx, viewKey); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := c.Get(ctx, viewKey); ok {
		t.Error("Get() = hit after Delete()")
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear(), want 0", c.Len())
	}
}

func TestCache_Metrics(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 1)

	c.Set(ctx, viewKey, true, time.Minute)
	c.Get(ctx, viewKey)   // hit
	c.Get(ctx, updateKey) // miss

	// The second insert exceeds the single-entry bound.
	c.Set(ctx, updateKey, false, time.Minute)

	m := c.Metrics()
	if m.Hits != 1 {
		t.Errorf("Hits = %d, want 1", m.Hits)
	}
	if m.Misses != 1 {
		t.Errorf("Misses = %d, want 1", m.Misses)
	}
	if m.KeysAdded != 2 {
		t.Errorf("KeysAdded = %d, want 2", m.KeysAdded)
	}
	if m.KeysEvicted != 1 {
		t.Errorf("KeysEvicted = %d, want 1", m.KeysEvicted)
	}
	if rate := m.HitRate(); rate != 0.5 {
		t.Errorf("HitRate() = %v, want 0.5", rate)
	}
}

func TestNew_RejectsNonPositiveBound(t *testing.T) {
	if _, err := New(&Config{MaxEntries: 0}); err == nil {
		t.Error("New(MaxEntries: 0) error = nil, want an error")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("shrubberies.view_shrubbery|%d|%d", worker, j%16)
				c.Set(ctx, key, j%2 == 0, time.Minute)
				c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 64 {
		t.Errorf("Len() = %d, want at most the entry bound 64", c.Len())
	}
}

package cache

import (
	"testing"
	"time"
)

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Errorf("least recently used key b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("k2", "v2")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired too early")
	}
	now = now.Add(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Errorf("entry should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("alice|2024-01", 1)
	c.Set("alice|2024-02", 2)
	c.Set("bob|2024-01", 3)

	if n := c.DeletePrefix("alice|"); n != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("bob|2024-01"); !ok {
		t.Errorf("bob's entry should survive")
	}
}

func TestManager_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)

	m := NewManager()
	m.Register(c)
	now = now.Add(2 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

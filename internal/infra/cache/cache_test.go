package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/stockledger-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	t.Cleanup(c.Close)

	c.Set("owner-1:2024-03-15", "value1")
	val, ok := c.Get("owner-1:2024-03-15")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	t.Cleanup(c.Close)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	t.Cleanup(c.Close)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	t.Cleanup(c.Close)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	t.Cleanup(c.Close)

	c.Set("future:owner-1:2024-03-15", 1)
	c.Set("future:owner-1:2024-03-16", 2)
	c.Set("future:owner-2:2024-03-15", 3)

	c.DeletePrefix("future:owner-1:")

	if _, ok := c.Get("future:owner-1:2024-03-15"); ok {
		t.Error("expected owner-1 entry to be gone")
	}
	if _, ok := c.Get("future:owner-1:2024-03-16"); ok {
		t.Error("expected owner-1 entry to be gone")
	}
	if v, ok := c.Get("future:owner-2:2024-03-15"); !ok || v != 3 {
		t.Error("expected owner-2 entry to survive")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestCache_CleanupSweepsExpired(t *testing.T) {
	c := cache.New[string](20 * time.Millisecond)
	t.Cleanup(c.Close)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	if c.Len() != 0 {
		t.Errorf("expected expired entry to be swept, got %d entries", c.Len())
	}
}

func TestCache_CloseStopsCleanup(t *testing.T) {
	c := cache.New[string](20 * time.Millisecond)
	c.Close()
	c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Error("expected expired entry to be hidden")
	}
	if c.Len() != 1 {
		t.Errorf("expected no sweep after Close, got %d entries", c.Len())
	}
}

package lru

import (
	"fmt"
	"testing"
)

func newTest(capacity int) *Cache[int] {
	// Adaptation off so capacity stays fixed during the test.
	return New[int](
		WithCapacity(capacity),
		WithBounds(1, 1024),
		WithCheckInterval(0),
	)
}

func TestGetSet(t *testing.T) {
	c := newTest(4)

	if _, ok := c.Get("a"); ok {
		t.Error("Get on empty cache returned ok")
	}

	c.Set("a", 1)
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v, want 1, true", v, ok)
	}

	// Overwrite keeps a single entry.
	c.Set("a", 2)
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want 2", v)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := newTest(3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Inserting capacity+1 distinct keys evicts exactly the LRU key.
	c.Set("d", 4)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have been evicted")
	}
	for _, key := range []string{"b", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestAccessRefreshesRecency(t *testing.T) {
	c := newTest(3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch a so b becomes the eviction candidate.
	c.Get("a")
	c.Set("d", 4)

	if _, ok := c.Get("a"); !ok {
		t.Error("a was evicted despite recent access")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
}

func TestDelete(t *testing.T) {
	c := newTest(4)
	c.Set("a", 1)
	c.Set("b", 2)

	if !c.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
	if _, ok := c.Get("a"); ok {
		t.Error("a still cached after Delete")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b lost after deleting a")
	}

	// Delete head and tail positions without corrupting the list.
	c.Set("c", 3)
	c.Set("d", 4)
	c.Delete("d") // head
	c.Delete("b") // tail
	c.Set("e", 5)
	if _, ok := c.Get("c"); !ok {
		t.Error("c lost after head/tail deletes")
	}
	if _, ok := c.Get("e"); !ok {
		t.Error("e lost after head/tail deletes")
	}
}

func TestResizeShrinkEvictsFromTail(t *testing.T) {
	c := newTest(4)
	for i, key := range []string{"a", "b", "c", "d"} {
		c.Set(key, i)
	}

	got := c.Resize(2)
	if got != 2 {
		t.Fatalf("Resize(2) = %d, want 2", got)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	// The two most recent keys survive.
	for _, key := range []string{"c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("%s should survive the shrink", key)
		}
	}
}

func TestResizeClampsToBounds(t *testing.T) {
	c := New[int](WithCapacity(8), WithBounds(4, 16), WithCheckInterval(0))

	if got := c.Resize(1); got != 4 {
		t.Errorf("Resize(1) = %d, want 4 (min)", got)
	}
	if got := c.Resize(100); got != 16 {
		t.Errorf("Resize(100) = %d, want 16 (max)", got)
	}
}

func TestAdaptiveGrowOnLowHitRate(t *testing.T) {
	c := New[int](WithCapacity(4), WithBounds(2, 64), WithCheckInterval(10))

	// All misses: one full window should double capacity.
	for i := 0; i < 10; i++ {
		c.Get(fmt.Sprintf("missing-%d", i))
	}
	if got := c.Cap(); got != 8 {
		t.Errorf("Cap() = %d, want 8 after grow", got)
	}
}

func TestAdaptiveShrinkOnHighHitRate(t *testing.T) {
	c := New[int](WithCapacity(16), WithBounds(2, 64), WithCheckInterval(10))
	c.Set("hot", 1)

	// All hits: one full window should halve capacity.
	for i := 0; i < 10; i++ {
		c.Get("hot")
	}
	if got := c.Cap(); got != 8 {
		t.Errorf("Cap() = %d, want 8 after shrink", got)
	}
}

func TestAdaptiveStaysWithinBounds(t *testing.T) {
	c := New[int](WithCapacity(4), WithBounds(2, 8), WithCheckInterval(5))

	for i := 0; i < 100; i++ {
		c.Get(fmt.Sprintf("missing-%d", i))
	}
	if got := c.Cap(); got != 8 {
		t.Errorf("Cap() = %d, want max 8", got)
	}

	c.Set("hot", 1)
	for i := 0; i < 100; i++ {
		c.Get("hot")
	}
	if got := c.Cap(); got != 2 {
		t.Errorf("Cap() = %d, want min 2", got)
	}
}

func TestStats(t *testing.T) {
	c := newTest(2)
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats = %+v, want 2 hits, 1 miss", s)
	}
	if rate := s.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("HitRate() = %f, want ~0.667", rate)
	}
}

func TestClear(t *testing.T) {
	c := newTest(4)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	c.Set("c", 3)
	if _, ok := c.Get("c"); !ok {
		t.Error("cache unusable after Clear")
	}
}

func BenchmarkGetHit(b *testing.B) {
	c := New[int](WithCapacity(1024), WithCheckInterval(0))
	for i := 0; i < 512; i++ {
		c.Set(fmt.Sprintf("/route/%d", i), i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("/route/100")
	}
}

func BenchmarkSetEvict(b *testing.B) {
	c := New[int](WithCapacity(128), WithBounds(128, 128), WithCheckInterval(0))
	keys := make([]string, 512)
	for i := range keys {
		keys[i] = fmt.Sprintf("/route/%d", i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(keys[i%len(keys)], i)
	}
}

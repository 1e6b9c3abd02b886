package solver

import "testing"

func rec(k int) *InfoSet {
	return &InfoSet{Regrets: make([]float64, k), StrategySum: make([]float64, k)}
}

func TestCacheLRUEviction(t *testing.T) {
	t.Parallel()
	c, err := NewCache(2, EvictLRU)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	c.Put("a", rec(2))
	c.Put("b", rec(2))
	c.Get("a") // refresh a; b is now least recent
	c.Put("c", rec(2))

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should have survived")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("c should be present")
	}
}

func TestCacheFIFOEviction(t *testing.T) {
	t.Parallel()
	c, _ := NewCache(2, EvictFIFO)
	c.Put("a", rec(2))
	c.Put("b", rec(2))
	c.Get("a") // access must not save a under FIFO
	c.Put("c", rec(2))

	if _, ok := c.Get("a"); ok {
		t.Fatal("a was inserted first and should be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("b should have survived")
	}
}

func TestCacheLFUEviction(t *testing.T) {
	t.Parallel()
	c, _ := NewCache(2, EvictLFU)
	c.Put("a", rec(2))
	c.Put("b", rec(2))
	c.Get("a")
	c.Get("a")
	c.Put("c", rec(2))

	if _, ok := c.Get("b"); ok {
		t.Fatal("b had the lowest frequency and should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should have survived")
	}
}

func TestCacheStats(t *testing.T) {
	t.Parallel()
	c, _ := NewCache(2, EvictLRU)
	c.Put("a", rec(2))
	c.Get("a")
	c.Get("missing")
	c.Put("b", rec(2))
	c.Put("c", rec(2))

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("hits=%d misses=%d", stats.Hits, stats.Misses)
	}
	if stats.HitRate() != 0.5 {
		t.Fatalf("hit rate = %v", stats.HitRate())
	}
	if stats.Evictions != 1 {
		t.Fatalf("evictions = %d", stats.Evictions)
	}
	if stats.PeakSize != 2 || stats.CurrentSize != 2 {
		t.Fatalf("peak=%d current=%d", stats.PeakSize, stats.CurrentSize)
	}
	if stats.GetCount != 2 {
		t.Fatalf("get count = %d", stats.GetCount)
	}
}

func TestCacheBatchOps(t *testing.T) {
	t.Parallel()
	c, _ := NewCache(8, EvictLRU)
	c.BatchPut(map[string]*InfoSet{"a": rec(2), "b": rec(3)})

	res := c.BatchGet([]string{"a", "b", "x", "y"})
	if len(res.Found) != 2 {
		t.Fatalf("found = %d, want 2", len(res.Found))
	}
	if len(res.Missing) != 2 {
		t.Fatalf("missing = %v", res.Missing)
	}
	if res.HitRate != 0.5 {
		t.Fatalf("batch hit rate = %v", res.HitRate)
	}
	if res.Found["b"].NumActions() != 3 {
		t.Fatalf("wrong record for b")
	}
}

func TestCacheRejectsZeroCapacity(t *testing.T) {
	t.Parallel()
	if _, err := NewCache(0, EvictLRU); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

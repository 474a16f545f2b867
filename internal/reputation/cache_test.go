package reputation

import (
	"fmt"
	"sync"
	"testing"
)

func TestCacheOperations(t *testing.T) {
	cache := NewCache()
	cache.Add("Evil.example", "", "other.example")

	if !cache.Contains("evil.example") || !cache.Contains("OTHER.example") {
		t.Fatal("added domains should be present")
	}
	if cache.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cache.Len())
	}

	cache.Remove("evil.example")
	if cache.Contains("evil.example") {
		t.Fatal("removed domain should be absent")
	}

	cache.Reload([]string{"a.example", "b.example", "c.example"})
	if cache.Len() != 3 || cache.Contains("other.example") {
		t.Fatalf("Reload should replace the set, len=%d", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Fatalf("Len after Clear = %d", cache.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				cache.Add(fmt.Sprintf("d%d-%d.example", i, j))
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				cache.Contains(fmt.Sprintf("d%d-%d.example", i, j))
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() != 8*200 {
		t.Fatalf("Len = %d, want %d", cache.Len(), 8*200)
	}
}

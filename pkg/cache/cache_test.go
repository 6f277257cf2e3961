package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/c360/driftview/errors"
)

func testBasicOperations(t *testing.T, cache Cache[string]) {
	if value, exists := cache.Get("key1"); exists {
		t.Errorf("Expected cache miss, got value: %s", value)
	}

	isNew, err := cache.Set("key1", "value1")
	if err != nil {
		t.Fatalf("Unexpected error setting key: %v", err)
	}
	if !isNew {
		t.Error("Expected new entry creation")
	}

	if value, exists := cache.Get("key1"); !exists || value != "value1" {
		t.Errorf("Expected 'value1', got value: %s, exists: %t", value, exists)
	}

	isNew, err = cache.Set("key1", "value1_updated")
	if err != nil {
		t.Fatalf("Unexpected error overwriting key: %v", err)
	}
	if isNew {
		t.Error("Expected existing entry overwrite")
	}

	deleted, err := cache.Delete("key1")
	if err != nil {
		t.Fatalf("Unexpected error deleting key: %v", err)
	}
	if !deleted {
		t.Error("Expected successful deletion")
	}

	deleted, _ = cache.Delete("key1")
	if deleted {
		t.Error("Expected deletion failure for missing key")
	}

	if _, err := cache.Set("", "x"); !errors.IsInvalid(err) {
		t.Errorf("Expected invalid error for empty key, got %v", err)
	}
}

func testUpdate(t *testing.T, cache Cache[string]) {
	got, err := cache.Update("slot", func(current string, exists bool) (string, error) {
		if exists {
			t.Errorf("Expected missing key, got %q", current)
		}
		return "v1", nil
	})
	if err != nil || got != "v1" {
		t.Fatalf("Expected v1, got %q (%v)", got, err)
	}

	got, err = cache.Update("slot", func(current string, exists bool) (string, error) {
		if !exists || current != "v1" {
			t.Errorf("Expected current v1, got %q exists=%t", current, exists)
		}
		return current + "+v2", nil
	})
	if err != nil || got != "v1+v2" {
		t.Fatalf("Expected v1+v2, got %q (%v)", got, err)
	}

	rejected := fmt.Errorf("rejected")
	_, err = cache.Update("slot", func(string, bool) (string, error) {
		return "never", rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("Expected rejection error, got %v", err)
	}
	if value, _ := cache.Get("slot"); value != "v1+v2" {
		t.Errorf("Failed update must leave value untouched, got %q", value)
	}

	if cache.Stats().Updates() != 2 {
		t.Errorf("Expected 2 recorded updates, got %d", cache.Stats().Updates())
	}
}

func testConcurrentUpdate(t *testing.T, cache Cache[int]) {
	const workers, rounds = 8, 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				_, _ = cache.Update("counter", func(current int, _ bool) (int, error) {
					return current + 1, nil
				})
			}
		}()
	}
	wg.Wait()

	if value, _ := cache.Get("counter"); value != workers*rounds {
		t.Errorf("Expected %d, got %d", workers*rounds, value)
	}
}

func TestSimpleCache(t *testing.T) {
	newCache := func(t *testing.T) Cache[string] {
		c, err := NewSimple[string]()
		if err != nil {
			t.Fatalf("NewSimple: %v", err)
		}
		return c
	}

	t.Run("basic", func(t *testing.T) { testBasicOperations(t, newCache(t)) })
	t.Run("update", func(t *testing.T) { testUpdate(t, newCache(t)) })
	t.Run("concurrent update", func(t *testing.T) {
		c, err := NewSimple[int]()
		if err != nil {
			t.Fatal(err)
		}
		testConcurrentUpdate(t, c)
	})
}

func TestLRUCache(t *testing.T) {
	newCache := func(t *testing.T) Cache[string] {
		c, err := NewLRU[string](16)
		if err != nil {
			t.Fatalf("NewLRU: %v", err)
		}
		return c
	}

	t.Run("basic", func(t *testing.T) { testBasicOperations(t, newCache(t)) })
	t.Run("update", func(t *testing.T) { testUpdate(t, newCache(t)) })
	t.Run("concurrent update", func(t *testing.T) {
		c, err := NewLRU[int](4)
		if err != nil {
			t.Fatal(err)
		}
		testConcurrentUpdate(t, c)
	})
}

func TestLRUCache_Eviction(t *testing.T) {
	var evicted []string
	cache, err := NewLRU[string](2, WithEvictionCallback(func(key string, _ string) {
		evicted = append(evicted, key)
	}))
	if err != nil {
		t.Fatal(err)
	}

	_, _ = cache.Set("a", "1")
	_, _ = cache.Set("b", "2")
	cache.Get("a") // a is now most recent
	_, _ = cache.Set("c", "3")

	if _, ok := cache.Get("b"); ok {
		t.Error("Expected b to be evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("Expected eviction of b, got %v", evicted)
	}
	if keys := cache.Keys(); len(keys) != 2 || keys[0] != "c" || keys[1] != "a" {
		t.Errorf("Expected recency order [c a], got %v", keys)
	}
	if cache.Stats().Evictions() != 1 {
		t.Errorf("Expected 1 eviction, got %d", cache.Stats().Evictions())
	}
}

func TestLRUCache_InvalidSize(t *testing.T) {
	if _, err := NewLRU[string](0); !errors.IsInvalid(err) {
		t.Errorf("Expected invalid error, got %v", err)
	}
}

func TestClear_NotifiesCallback(t *testing.T) {
	var dropped int
	cache, err := NewSimple[string](WithEvictionCallback(func(string, string) { dropped++ }))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = cache.Set("a", "1")
	_, _ = cache.Set("b", "2")

	if err := cache.Clear(); err != nil {
		t.Fatal(err)
	}
	if cache.Size() != 0 || dropped != 2 {
		t.Errorf("Expected empty cache and 2 callbacks, got size=%d callbacks=%d", cache.Size(), dropped)
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"empty defaults to simple", Config{}, false},
		{"simple", Config{Strategy: StrategySimple}, false},
		{"lru", Config{Strategy: StrategyLRU, MaxSize: 10}, false},
		{"lru without size", Config{Strategy: StrategyLRU}, true},
		{"unknown", Config{Strategy: "ttl"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewFromConfig[string](tt.config)
			if tt.wantErr {
				if !errors.IsInvalid(err) {
					t.Errorf("Expected invalid error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer c.Close()
			testBasicOperations(t, c)
		})
	}
}

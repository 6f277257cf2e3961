package cache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/c360/driftview/errors"
)

type lruEntry[V any] struct {
	key   string
	value V
}

// lruCache evicts the least recently used entry once maxSize is exceeded.
type lruCache[V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
}

func newLRUCache[V any](maxSize int, opts *cacheOptions[V]) (*lruCache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "cache", "newLRUCache",
			fmt.Sprintf("max size must be positive, got %d", maxSize))
	}

	metrics, err := buildMetrics(opts, "newLRUCache")
	if err != nil {
		return nil, err
	}

	return &lruCache[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: opts.evictCallback,
	}, nil
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		c.stats.Miss()
		c.metrics.recordMiss()
		var zero V
		return zero, false
	}
	c.order.MoveToFront(element)
	value := element.Value.(*lruEntry[V]).value
	c.mu.Unlock()

	c.stats.Hit()
	c.metrics.recordHit()
	return value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	created := c.storeLocked(key, value)
	evicted := c.trimLocked()
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	c.metrics.recordSet()
	c.metrics.updateSize(size)
	c.notifyEvicted(evicted)

	return created, nil
}

func (c *lruCache[V]) Update(key string, fn UpdateFunc[V]) (V, error) {
	var zero V
	if err := validateKey(key); err != nil {
		return zero, err
	}

	c.mu.Lock()
	var current V
	element, exists := c.items[key]
	if exists {
		current = element.Value.(*lruEntry[V]).value
	}
	next, err := fn(current, exists)
	if err != nil {
		c.mu.Unlock()
		return zero, err
	}
	c.storeLocked(key, next)
	evicted := c.trimLocked()
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Update()
	c.stats.UpdateSize(int64(size))
	c.metrics.recordUpdate()
	c.metrics.updateSize(size)
	c.notifyEvicted(evicted)

	return next, nil
}

func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return false, nil
	}
	entry := c.removeLocked(element)
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Delete()
	c.stats.UpdateSize(int64(size))
	c.metrics.recordDelete()
	c.metrics.updateSize(size)

	if c.evictFn != nil {
		c.evictFn(entry.key, entry.value)
	}
	return true, nil
}

func (c *lruCache[V]) Clear() error {
	c.mu.Lock()
	var dropped []lruEntry[V]
	if c.evictFn != nil {
		dropped = make([]lruEntry[V], 0, len(c.items))
		for element := c.order.Back(); element != nil; element = element.Prev() {
			dropped = append(dropped, *element.Value.(*lruEntry[V]))
		}
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	c.stats.UpdateSize(0)
	c.metrics.updateSize(0)

	for _, entry := range dropped {
		c.evictFn(entry.key, entry.value)
	}
	return nil
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns keys in recency order, most recently used first.
func (c *lruCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruEntry[V]).key)
	}
	return keys
}

func (c *lruCache[V]) Stats() *Statistics {
	return c.stats
}

func (c *lruCache[V]) Close() error {
	return nil
}

// storeLocked inserts or replaces key and marks it most recently used.
// Must be called with mu held.
func (c *lruCache[V]) storeLocked(key string, value V) bool {
	if element, exists := c.items[key]; exists {
		element.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(element)
		return false
	}
	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
	return true
}

// trimLocked evicts from the back until the size limit holds.
// Must be called with mu held; callbacks are returned for the caller to run unlocked.
func (c *lruCache[V]) trimLocked() []lruEntry[V] {
	var evicted []lruEntry[V]
	for len(c.items) > c.maxSize {
		back := c.order.Back()
		if back == nil {
			break
		}
		evicted = append(evicted, c.removeLocked(back))
		c.stats.Eviction()
		c.metrics.recordEviction()
	}
	return evicted
}

func (c *lruCache[V]) removeLocked(element *list.Element) lruEntry[V] {
	entry := element.Value.(*lruEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(element)
	return *entry
}

func (c *lruCache[V]) notifyEvicted(evicted []lruEntry[V]) {
	if c.evictFn == nil {
		return
	}
	for _, entry := range evicted {
		c.evictFn(entry.key, entry.value)
	}
}

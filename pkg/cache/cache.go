// Package cache provides generic, thread-safe in-process caches.
//
// Two eviction strategies are available:
//   - Simple: no eviction, entries live until deleted or cleared
//   - LRU: least recently used entries are evicted past a size limit
//
// Statistics are always collected; Prometheus metrics are optional via WithMetrics.
// Update gives callers an atomic read-modify-write on a single key, which the
// slot stores use for compare-and-swap commits.
package cache

import (
	"github.com/c360/driftview/errors"
)

// Cache is the interface all cache implementations satisfy.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found.
	Get(key string) (V, bool)

	// Set stores a value. Returns true if a new entry was created.
	Set(key string, value V) (bool, error)

	// Update runs fn with the current value under the cache lock and stores
	// the value it returns. If fn returns an error nothing is stored.
	Update(key string, fn UpdateFunc[V]) (V, error)

	// Delete removes an entry. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys currently cached.
	Keys() []string

	// Stats returns the cache statistics.
	Stats() *Statistics

	// Close releases resources held by the cache.
	Close() error
}

// UpdateFunc computes the next value for a key from its current value.
// exists is false when the key is not cached, in which case current is the zero value.
type UpdateFunc[V any] func(current V, exists bool) (V, error)

// EvictCallback is called when an entry is evicted or deleted.
type EvictCallback[V any] func(key string, value V)

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

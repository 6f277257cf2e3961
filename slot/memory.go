package slot

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/metric"
	"github.com/c360/driftview/pkg/cache"
)

const backendMemory = "memory"

// MemoryStore keeps slots in an in-process cache.
type MemoryStore struct {
	entries cache.Cache[*Entry]
	seq     atomic.Uint64
	logger  *slog.Logger
	metrics *metric.Metrics
	now     func() time.Time
}

// NewMemoryStore builds a store over the configured cache strategy. With the
// LRU strategy an evicted slot simply reads as not found.
func NewMemoryStore(opts ...Option) (*MemoryStore, error) {
	o := applyOptions(opts)

	var cacheOpts []cache.Option[*Entry]
	if o.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[*Entry](o.registry, "slots"))
	}
	logger := o.logger.With("component", "slot", "backend", backendMemory)
	cacheOpts = append(cacheOpts, cache.WithEvictionCallback(func(key string, _ *Entry) {
		logger.Debug("Slot dropped from cache", "slot", key)
	}))

	entries, err := cache.NewFromConfig[*Entry](o.cache, cacheOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "MemoryStore", "NewMemoryStore", "build cache")
	}

	return &MemoryStore{
		entries: entries,
		logger:  logger,
		metrics: o.coreMetrics(),
		now:     o.now,
	}, nil
}

// Load returns a copy of the stored entry.
func (s *MemoryStore) Load(ctx context.Context, key connection.SlotKey) (entry *Entry, err error) {
	defer s.observe("load", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, ok := s.entries.Get(key.String())
	if !ok {
		return nil, ErrSlotNotFound
	}
	return copyEntry(stored), nil
}

// Commit atomically swaps the slot if its revision matches expected.
func (s *MemoryStore) Commit(ctx context.Context, key connection.SlotKey, expected uint64,
	conn *connection.Connection, halted bool) (entry *Entry, err error) {
	defer s.observe("commit", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.entries.Update(key.String(), func(current *Entry, exists bool) (*Entry, error) {
		var have uint64
		if exists {
			have = current.Revision
		}
		if have != expected {
			return nil, staleError("Commit", key, expected)
		}
		return &Entry{
			Key:        key,
			Connection: conn.Clone(),
			Revision:   s.seq.Add(1),
			Halted:     halted,
			UpdatedAt:  s.now(),
		}, nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleRevision) {
			s.metrics.RecordConflict(backendMemory)
		}
		return nil, err
	}

	s.logger.Debug("Slot committed", "slot", key.String(), "revision", stored.Revision,
		"edges", stored.Connection.Len(), "halted", halted)
	return copyEntry(stored), nil
}

// Reset drops the slot.
func (s *MemoryStore) Reset(ctx context.Context, key connection.SlotKey) (err error) {
	defer s.observe("reset", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = s.entries.Delete(key.String())
	return err
}

// Keys lists stored slots in key order.
func (s *MemoryStore) Keys(ctx context.Context) ([]connection.SlotKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := s.entries.Keys()
	sort.Strings(raw)

	keys := make([]connection.SlotKey, 0, len(raw))
	for _, k := range raw {
		parsed, err := connection.ParseSlotKey(k)
		if err != nil {
			return nil, errors.Wrap(err, "MemoryStore", "Keys", "parse stored key")
		}
		keys = append(keys, parsed)
	}
	return keys, nil
}

// Stats exposes the underlying cache statistics.
func (s *MemoryStore) Stats() *cache.Statistics {
	return s.entries.Stats()
}

// Close releases the cache.
func (s *MemoryStore) Close() error {
	return s.entries.Close()
}

func (s *MemoryStore) observe(op string, start time.Time, err *error) {
	var outcome error
	if err != nil && *err != nil && !errors.Is(*err, ErrSlotNotFound) {
		outcome = *err
	}
	s.metrics.RecordStoreOperation(backendMemory, op, outcome, time.Since(start))
}

func copyEntry(e *Entry) *Entry {
	out := *e
	out.Connection = e.Connection.Clone()
	return &out
}

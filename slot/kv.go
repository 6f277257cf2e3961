package slot

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/metric"
	"github.com/c360/driftview/natsclient"
)

const backendNATS = "nats"

// KVStore keeps slots in a JetStream key-value bucket. The KV revision is the
// slot revision.
type KVStore struct {
	kv      *natsclient.KVStore
	logger  *slog.Logger
	metrics *metric.Metrics
	now     func() time.Time
}

// NewKVStore builds a store over kv.
func NewKVStore(kv *natsclient.KVStore, opts ...Option) *KVStore {
	o := applyOptions(opts)
	return &KVStore{
		kv:      kv,
		logger:  o.logger.With("component", "slot", "backend", backendNATS),
		metrics: o.coreMetrics(),
		now:     o.now,
	}
}

// Load reads and decodes the slot.
func (s *KVStore) Load(ctx context.Context, key connection.SlotKey) (entry *Entry, err error) {
	defer s.observe("load", time.Now(), &err)

	raw, err := s.kv.Get(ctx, key.String())
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, ErrSlotNotFound
		}
		return nil, errors.Wrap(err, "KVStore", "Load", "read "+key.String())
	}

	var rec record
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return nil, errors.WrapFatal(errors.ErrDataCorrupted, "KVStore", "Load",
			"decode "+key.String()+": "+err.Error())
	}
	return &Entry{
		Key:        key,
		Connection: rec.Connection,
		Revision:   raw.Revision,
		Halted:     rec.Halted,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

// Commit creates the slot when expected is 0 and otherwise performs a
// revision-checked update.
func (s *KVStore) Commit(ctx context.Context, key connection.SlotKey, expected uint64,
	conn *connection.Connection, halted bool) (entry *Entry, err error) {
	defer s.observe("commit", time.Now(), &err)

	if err := key.Validate(); err != nil {
		return nil, err
	}

	rec := record{Connection: conn, Halted: halted, UpdatedAt: s.now().UTC()}
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.WrapInvalid(err, "KVStore", "Commit", "encode "+key.String())
	}

	var rev uint64
	if expected == 0 {
		rev, err = s.kv.Create(ctx, key.String(), value)
	} else {
		rev, err = s.kv.Update(ctx, key.String(), value, expected)
	}
	if err != nil {
		if natsclient.IsKVConflictError(err) {
			s.metrics.RecordConflict(backendNATS)
			return nil, staleError("Commit", key, expected)
		}
		return nil, errors.Wrap(err, "KVStore", "Commit", "write "+key.String())
	}

	s.logger.Debug("Slot committed", "slot", key.String(), "revision", rev,
		"edges", conn.Len(), "halted", halted)
	return &Entry{
		Key:        key,
		Connection: conn.Clone(),
		Revision:   rev,
		Halted:     halted,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

// Reset deletes the slot.
func (s *KVStore) Reset(ctx context.Context, key connection.SlotKey) (err error) {
	defer s.observe("reset", time.Now(), &err)

	if err := s.kv.Delete(ctx, key.String()); err != nil {
		return errors.Wrap(err, "KVStore", "Reset", "delete "+key.String())
	}
	return nil
}

// Keys lists slots in key order. Keys that do not parse as slot keys are
// skipped so a shared bucket does not break listing.
func (s *KVStore) Keys(ctx context.Context) ([]connection.SlotKey, error) {
	raw, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "KVStore", "Keys", "list bucket")
	}
	sort.Strings(raw)

	keys := make([]connection.SlotKey, 0, len(raw))
	for _, k := range raw {
		parsed, err := connection.ParseSlotKey(k)
		if err != nil {
			s.logger.Warn("Skipping foreign key in slot bucket", "key", k)
			continue
		}
		keys = append(keys, parsed)
	}
	return keys, nil
}

// Close is a no-op; the NATS client is owned by the caller.
func (s *KVStore) Close() error {
	return nil
}

func (s *KVStore) observe(op string, start time.Time, err *error) {
	var outcome error
	if err != nil && *err != nil && !errors.Is(*err, ErrSlotNotFound) {
		outcome = *err
	}
	s.metrics.RecordStoreOperation(backendNATS, op, outcome, time.Since(start))
}
